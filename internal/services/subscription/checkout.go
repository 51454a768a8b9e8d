package subscription

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/payment/providers/razorpay"
	"github.com/truckmitra/backend/internal/utils"
)

var (
	// ErrSubscriptionConflict is returned when the user already holds an
	// authenticated/active unexpired subscription. A conflict, not a failure.
	ErrSubscriptionConflict = errors.New("user already has an active subscription")

	// ErrPlanInactive is returned when checkout targets a disabled plan
	ErrPlanInactive = errors.New("plan is not active")

	// ErrSignatureMismatch is returned when the client-supplied checkout
	// signature does not match. The attempt is recorded as a failed payment.
	ErrSignatureMismatch = errors.New("checkout signature mismatch")

	// ErrPaymentNotFound is returned when verify references an unknown order
	ErrPaymentNotFound = errors.New("payment not found")
)

// CheckoutService is the synchronous half of the billing core: it registers
// intent with the gateway and persists pending ledger rows. It never
// activates a recurring subscription on its own; that is the webhook
// reconciler's job.
type CheckoutService struct {
	store   Store
	gateway Gateway
}

// NewCheckoutService creates a checkout orchestrator
func NewCheckoutService(store Store, gateway Gateway) *CheckoutService {
	return &CheckoutService{store: store, gateway: gateway}
}

// CheckoutParams are the gateway-native parameters the caller hands to the
// client-side checkout widget.
type CheckoutParams struct {
	GatewayKeyID           string  `json:"gateway_key_id"`
	OrderID                string  `json:"order_id,omitempty"`
	RazorpaySubscriptionID string  `json:"razorpay_subscription_id,omitempty"`
	ShortURL               string  `json:"short_url,omitempty"`
	Amount                 int64   `json:"amount"` // minor units
	Currency               string  `json:"currency"`
	PlanName               string  `json:"plan_name"`
	PrefillName            string  `json:"prefill_name"`
	PrefillEmail           string  `json:"prefill_email"`
	PrefillContact         string  `json:"prefill_contact"`
	PaymentRef             string  `json:"payment_ref"`
	AmountDisplay          float64 `json:"amount_display"`
}

// RequestContext carries request-scoped detail recorded on the payment row
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// InitiateCheckout starts a purchase of the given plan: a one-time order for
// lifetime plans, a recurring gateway subscription otherwise. The gateway
// call happens before anything is persisted; on gateway failure no rows
// exist. On local validation failure no gateway call is made.
func (s *CheckoutService) InitiateCheckout(userID, planID uuid.UUID, reqCtx RequestContext) (*CheckoutParams, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	existing, err := s.store.ActiveSubscriptionForUser(userID, time.Now())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSubscriptionConflict
	}

	if plan.IsRecurring() {
		return s.initiateSubscription(user, plan, reqCtx)
	}
	return s.initiateOrder(user, plan, reqCtx)
}

// initiateOrder runs the flat-fee flow: one gateway order, one pending
// payment row.
func (s *CheckoutService) initiateOrder(user *models.User, plan *models.Plan, reqCtx RequestContext) (*CheckoutParams, error) {
	localPaymentID := uuid.New()
	receipt := newReceiptNumber()
	amountMinor := minorUnits(plan.Price)

	order, err := s.gateway.CreateOrder(amountMinor, string(plan.Currency), receipt, map[string]interface{}{
		"user_id":    user.ID.String(),
		"plan_id":    plan.ID.String(),
		"payment_id": localPaymentID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating gateway order: %w", err)
	}

	now := time.Now()
	p := &models.Payment{
		Base:               models.Base{ID: localPaymentID},
		UserID:             user.ID,
		PlanID:             &plan.ID,
		RazorpayOrderID:    &order.ID,
		ReceiptNumber:      receipt,
		Amount:             plan.Price,
		TotalAmount:        plan.Price,
		Currency:           plan.Currency,
		PaymentGateway:     models.GatewayRazorpay,
		PaymentStatus:      models.PaymentStatusPending,
		OrderStatus:        models.OrderStatusCreated,
		PaymentType:        models.PaymentTypeOneTime,
		CustomerName:       user.Name,
		CustomerEmail:      user.Email,
		CustomerContact:    user.Phone,
		IPAddress:          reqCtx.IPAddress,
		UserAgent:          reqCtx.UserAgent,
		PaymentInitiatedAt: &now,
	}

	if err := s.store.WithTx(func(tx Store) error {
		return tx.CreatePayment(p)
	}); err != nil {
		return nil, err
	}

	return &CheckoutParams{
		GatewayKeyID:   s.gateway.KeyID(),
		OrderID:        order.ID,
		Amount:         amountMinor,
		AmountDisplay:  plan.Price,
		Currency:       string(plan.Currency),
		PlanName:       plan.Name,
		PrefillName:    user.Name,
		PrefillEmail:   user.Email,
		PrefillContact: user.Phone,
		PaymentRef:     localPaymentID.String(),
	}, nil
}

// initiateSubscription runs the recurring flow: a gateway subscription plus a
// pending cycle-0 payment row and a created subscription row, persisted in
// one transaction so either both exist or neither does.
func (s *CheckoutService) initiateSubscription(user *models.User, plan *models.Plan, reqCtx RequestContext) (*CheckoutParams, error) {
	if plan.RazorpayPlanID == "" {
		return nil, fmt.Errorf("plan %s has no gateway plan reference", plan.Slug)
	}

	localPaymentID := uuid.New()
	receipt := newReceiptNumber()

	gwSub, err := s.gateway.CreateSubscription(plan.RazorpayPlanID, plan.TotalCycles, map[string]interface{}{
		"user_id":    user.ID.String(),
		"plan_id":    plan.ID.String(),
		"payment_id": localPaymentID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating gateway subscription: %w", err)
	}

	now := time.Now()
	cycleZero := 0

	sub := &models.PlanSubscription{
		UserID:                 user.ID,
		PlanID:                 plan.ID,
		PlanName:               plan.Name,
		RazorpaySubscriptionID: &gwSub.ID,
		PricePaid:              plan.Price,
		DurationType:           plan.DurationType,
		Status:                 models.SubscriptionStatusCreated,
		SubscriptionStatus:     models.GatewayStatusCreated,
		TotalBillingCycles:     gwSub.TotalCount,
		RemainingBillingCycles: gwSub.TotalCount,
		AutoRenew:              true,
	}

	p := &models.Payment{
		Base:                   models.Base{ID: localPaymentID},
		UserID:                 user.ID,
		PlanID:                 &plan.ID,
		RazorpaySubscriptionID: &gwSub.ID,
		BillingCycleNumber:     &cycleZero,
		ReceiptNumber:          receipt,
		Amount:                 plan.Price + plan.SetupFee,
		TotalAmount:            plan.Price + plan.SetupFee,
		Currency:               plan.Currency,
		PaymentGateway:         models.GatewayRazorpay,
		PaymentStatus:          models.PaymentStatusCreated,
		OrderStatus:            models.OrderStatusCreated,
		PaymentType:            models.PaymentTypeSetupFee,
		IsSubscriptionPayment:  true,
		CustomerName:           user.Name,
		CustomerEmail:          user.Email,
		CustomerContact:        user.Phone,
		IPAddress:              reqCtx.IPAddress,
		UserAgent:              reqCtx.UserAgent,
		PaymentInitiatedAt:     &now,
	}

	if err := s.store.WithTx(func(tx Store) error {
		if err := tx.CreateSubscription(sub); err != nil {
			return err
		}
		p.PlanSubscriptionID = &sub.ID
		return tx.CreatePayment(p)
	}); err != nil {
		return nil, err
	}

	return &CheckoutParams{
		GatewayKeyID:           s.gateway.KeyID(),
		RazorpaySubscriptionID: gwSub.ID,
		ShortURL:               gwSub.ShortURL,
		Amount:                 minorUnits(plan.Price + plan.SetupFee),
		AmountDisplay:          plan.Price + plan.SetupFee,
		Currency:               string(plan.Currency),
		PlanName:               plan.Name,
		PrefillName:            user.Name,
		PrefillEmail:           user.Email,
		PrefillContact:         user.Phone,
		PaymentRef:             localPaymentID.String(),
	}, nil
}

// VerifyCheckout finalizes the one-time-order flow after the client-side
// payment. The signature is checked in constant time; on mismatch the
// payment row is marked failed and kept as evidence. On match the payment is
// captured with authoritative gateway detail and the entitlement row is
// created and linked, all inside one transaction.
//
// Calling verify again for an already-captured order is success, not error,
// and creates nothing.
func (s *CheckoutService) VerifyCheckout(userID uuid.UUID, orderID, paymentID, signature string) (*models.Payment, *models.PlanSubscription, error) {
	p, err := s.store.GetPaymentByOrderID(orderID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, nil, ErrPaymentNotFound
	}

	// Idempotence: already captured means a previous verify or a webhook won
	// the race. Do not create a second entitlement.
	if p.PaymentStatus == models.PaymentStatusCaptured {
		sub, err := s.linkedSubscription(p)
		return p, sub, err
	}

	now := time.Now()

	if !s.gateway.VerifyCheckoutSignature(orderID, paymentID, signature) {
		// Local trust-boundary rejection: no gateway call, row kept for audit.
		failErr := s.store.WithTx(func(tx Store) error {
			p.PaymentID = strPtr(paymentID)
			p.PaymentStatus = models.PaymentStatusFailed
			p.OrderStatus = models.OrderStatusFailed
			p.ErrorCode = models.ErrCodeSignatureMismatch
			p.ErrorDescription = "client-supplied checkout signature did not match"
			p.PaymentFailedAt = &now
			return tx.SavePayment(p)
		})
		if failErr != nil {
			return nil, nil, failErr
		}
		return p, nil, ErrSignatureMismatch
	}

	detail, err := s.gateway.FetchPayment(paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching payment from gateway: %w", err)
	}

	var sub *models.PlanSubscription
	err = s.store.WithTx(func(tx Store) error {
		p.PaymentID = strPtr(paymentID)
		p.PaymentStatus = models.PaymentStatusCaptured
		p.OrderStatus = models.OrderStatusPaid
		p.SignatureVerified = true
		p.AmountPaid = float64(detail.Amount) / 100
		p.PaymentMethod = detail.Method
		p.CardLast4 = detail.Card.Last4
		p.CardNetwork = detail.Card.Network
		p.Wallet = detail.Wallet
		p.VPA = detail.VPA
		p.Bank = detail.Bank
		p.PaymentCompletedAt = &now
		p.GatewayResponse = gatewayResponseJSON(detail)

		plan, err := s.planForPayment(tx, p)
		if err != nil {
			return err
		}

		// Retire any lapsed row the sweep has not reached so the new active
		// row does not collide with the active-per-user index.
		if _, err := tx.CompleteLapsedSubscriptionsForUser(p.UserID, now); err != nil {
			return err
		}

		sub = &models.PlanSubscription{
			UserID:             p.UserID,
			PlanID:             plan.ID,
			PlanName:           plan.Name,
			PricePaid:          p.AmountPaid,
			DurationType:       plan.DurationType,
			StartsAt:           now,
			ExpiresAt:          ExpiryFor(now, plan.DurationType),
			Status:             models.SubscriptionStatusActive,
			SubscriptionStatus: models.GatewayStatusActive,
			AutoRenew:          false, // one-time purchase, nothing recurs
		}
		if err := tx.CreateSubscription(sub); err != nil {
			return err
		}

		// A verified payment is never left without its entitlement.
		p.PlanSubscriptionID = &sub.ID
		return tx.SavePayment(p)
	})
	if err != nil {
		return nil, nil, err
	}

	return p, sub, nil
}

// VerifySubscriptionCheckout records the client-side result of the recurring
// flow. It verifies the signature and marks the cycle-0 payment authorized,
// but never activates the subscription: the browser-observed success and the
// gateway's authoritative webhook can diverge, and only the webhook is
// guaranteed eventually-consistent.
func (s *CheckoutService) VerifySubscriptionCheckout(userID uuid.UUID, gatewaySubID, paymentID, signature string) (*models.Payment, error) {
	p, err := s.store.FindCreatedPaymentForSubscription(gatewaySubID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// The webhook may already have resolved the row; surface it by
		// gateway payment id instead.
		p, err = s.store.GetPaymentByGatewayPaymentID(paymentID)
		if err != nil {
			return nil, err
		}
		if p == nil || p.UserID != userID {
			return nil, ErrPaymentNotFound
		}
		return p, nil
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}

	now := time.Now()

	if !s.gateway.VerifySubscriptionSignature(gatewaySubID, paymentID, signature) {
		failErr := s.store.WithTx(func(tx Store) error {
			p.PaymentID = strPtr(paymentID)
			p.PaymentStatus = models.PaymentStatusFailed
			p.OrderStatus = models.OrderStatusFailed
			p.ErrorCode = models.ErrCodeSignatureMismatch
			p.ErrorDescription = "client-supplied subscription signature did not match"
			p.PaymentFailedAt = &now
			return tx.SavePayment(p)
		})
		if failErr != nil {
			return nil, failErr
		}
		return p, ErrSignatureMismatch
	}

	err = s.store.WithTx(func(tx Store) error {
		p.PaymentID = strPtr(paymentID)
		p.SignatureVerified = true
		if p.PaymentStatus == models.PaymentStatusCreated {
			p.PaymentStatus = models.PaymentStatusPending
		}
		return tx.SavePayment(p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentSubscription returns the user's subscription view for the status
// query: the active one when present, otherwise the latest row so a
// checkout awaiting its webhook reads as pending rather than absent.
func (s *CheckoutService) CurrentSubscription(userID uuid.UUID) (*models.PlanSubscription, error) {
	sub, err := s.store.ActiveSubscriptionForUser(userID, time.Now())
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}
	return s.store.LatestSubscriptionForUser(userID)
}

// linkedSubscription loads the entitlement a payment was linked to, if any
func (s *CheckoutService) linkedSubscription(p *models.Payment) (*models.PlanSubscription, error) {
	if p.PlanSubscriptionID == nil {
		return nil, nil
	}
	return s.store.GetSubscription(*p.PlanSubscriptionID)
}

// planForPayment resolves the plan a payment was initiated for
func (s *CheckoutService) planForPayment(tx Store, p *models.Payment) (*models.Plan, error) {
	if p.PlanID == nil {
		return nil, fmt.Errorf("payment %s has no plan reference", p.ID)
	}
	return tx.GetPlan(*p.PlanID)
}

// gatewayResponseJSON flattens the fetched payment detail for audit storage
func gatewayResponseJSON(detail *razorpay.PaymentDetail) models.JSON {
	return models.JSON{
		"id":       detail.ID,
		"order_id": detail.OrderID,
		"status":   detail.Status,
		"method":   detail.Method,
		"amount":   detail.Amount,
		"currency": detail.Currency,
		"captured": detail.Captured,
		"fee":      detail.Fee,
		"tax":      detail.Tax,
	}
}

// newReceiptNumber generates a locally-unique receipt reference
// minorUnits converts a major-unit price to the gateway's integer minor
// units. Rounded, not truncated: prices like 1.13 have no exact float64
// representation and truncation would bill one paisa short.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func newReceiptNumber() string {
	return utils.GenerateReference("RCPT")
}
