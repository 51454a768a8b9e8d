package subscription

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
)

// ErrInvalidSignature is returned when a webhook delivery fails
// authentication. The endpoint maps it to 401 and nothing is mutated.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Notifier receives subscription lifecycle changes the user should hear
// about. Calls happen after the owning transaction has committed and must not
// block; delivery is best effort.
type Notifier interface {
	SubscriptionEvent(userID, subscriptionID uuid.UUID, event string)
}

// Reconciler applies gateway webhook events to the local ledger. Deliveries
// are at-least-once, unordered and may race with the synchronous checkout
// path, so every handler is idempotent: it writes absolute target states,
// no-ops when the target row does not exist yet, and no-ops when the row is
// already past the event's state.
type Reconciler struct {
	store    Store
	gateway  Gateway
	notifier Notifier
}

// NewReconciler creates a webhook reconciler. notifier may be nil.
func NewReconciler(store Store, gateway Gateway, notifier Notifier) *Reconciler {
	return &Reconciler{store: store, gateway: gateway, notifier: notifier}
}

func (r *Reconciler) notify(sub *models.PlanSubscription, event string) {
	if r.notifier == nil {
		return
	}
	r.notifier.SubscriptionEvent(sub.UserID, sub.ID, event)
}

// HandleEvent authenticates, records and dispatches one webhook delivery.
//
// A handler failure is logged and swallowed: the delivery is still
// acknowledged and the gateway's retry policy is the recovery mechanism,
// which is safe because every handler can be replayed. Only a signature
// failure propagates as an error.
func (r *Reconciler) HandleEvent(rawBody []byte, signature string) error {
	if r.gateway.WebhookConfigured() {
		if !r.gateway.VerifyWebhookSignature(rawBody, signature) {
			return ErrInvalidSignature
		}
	} else {
		// Degraded mode: deliveries cannot be authenticated. Never silent.
		log.Printf("WARNING: webhook secret not configured, accepting unauthenticated delivery")
	}

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		// Authenticated but unparseable. Retrying cannot fix it, so record
		// it and acknowledge.
		log.Printf("webhook: unparseable payload: %v", err)
		audit := &models.WebhookEvent{
			Gateway: models.GatewayRazorpay,
			Event:   "unparseable",
			RawData: rawPayload(rawBody),
			Error:   err.Error(),
		}
		if err := r.store.RecordWebhookEvent(audit); err != nil {
			log.Printf("webhook: failed to record audit row: %v", err)
		}
		return nil
	}

	audit := &models.WebhookEvent{
		Gateway:                models.GatewayRazorpay,
		Event:                  event.Event,
		RazorpayPaymentID:      event.Payload.Payment.Entity.ID,
		RazorpaySubscriptionID: event.Payload.Subscription.Entity.ID,
		RawData:                rawPayload(rawBody),
	}
	if err := r.store.RecordWebhookEvent(audit); err != nil {
		log.Printf("webhook: failed to record audit row: %v", err)
	}

	handler, ok := r.handlerFor(event.Event)
	if !ok {
		// Forward-compatible no-op: unknown event names are accepted.
		log.Printf("webhook: ignoring unhandled event %q", event.Event)
		r.finishAudit(audit, nil)
		return nil
	}

	err := handler(&event, rawPayload(rawBody))
	if err != nil {
		log.Printf("webhook: handler for %q failed: %v", event.Event, err)
	}
	r.finishAudit(audit, err)
	return nil
}

// handlerFor returns the handler for an event name. Each handler runs inside
// its own transaction.
func (r *Reconciler) handlerFor(name string) (func(*Event, map[string]interface{}) error, bool) {
	switch name {
	case EventPaymentAuthorized:
		return r.handlePaymentAuthorized, true
	case EventPaymentCaptured:
		return r.handlePaymentCaptured, true
	case EventPaymentFailed:
		return r.handlePaymentFailed, true
	case EventSubscriptionAuthenticated:
		return r.handleSubscriptionAuthenticated, true
	case EventSubscriptionCharged:
		return r.handleSubscriptionCharged, true
	case EventSubscriptionCompleted:
		return r.subscriptionStatusHandler(models.GatewayStatusCompleted, "completed"), true
	case EventSubscriptionCancelled:
		return r.subscriptionStatusHandler(models.GatewayStatusCancelled, "cancelled"), true
	case EventSubscriptionHalted:
		return r.subscriptionStatusHandler(models.GatewayStatusHalted, "halted"), true
	case EventSubscriptionResumed:
		return r.subscriptionStatusHandler(models.GatewayStatusActive, "resumed"), true
	}
	return nil, false
}

func (r *Reconciler) finishAudit(audit *models.WebhookEvent, handlerErr error) {
	now := time.Now()
	audit.Processed = handlerErr == nil
	audit.ProcessedAt = &now
	if handlerErr != nil {
		audit.Error = handlerErr.Error()
	}
	if err := r.store.SaveWebhookEvent(audit); err != nil {
		log.Printf("webhook: failed to update audit row: %v", err)
	}
}

// handlePaymentAuthorized records the gateway payment id on the pending
// payment row for the subscription. The created/pending status filter makes
// redelivery a no-op: a resolved row no longer matches.
func (r *Reconciler) handlePaymentAuthorized(ev *Event, raw map[string]interface{}) error {
	pe := ev.Payload.Payment.Entity
	if pe.SubscriptionID == "" {
		log.Printf("webhook: payment.authorized without subscription id, ignoring payment %s", pe.ID)
		return nil
	}

	return r.store.WithTx(func(tx Store) error {
		p, err := tx.FindCreatedPaymentForSubscription(pe.SubscriptionID)
		if err != nil {
			return err
		}
		if p == nil {
			log.Printf("webhook: no pending payment for subscription %s, ignoring authorization", pe.SubscriptionID)
			return nil
		}

		p.PaymentID = strPtr(pe.ID)
		p.PaymentStatus = models.PaymentStatusAuthorized
		p.OrderStatus = models.OrderStatusAuthenticated
		applyPaymentEntityDetail(p, pe)
		p.WebhookMetadata = raw
		return tx.SavePayment(p)
	})
}

// handlePaymentCaptured marks the matching payment captured. The update is
// naturally idempotent: redelivery writes the same values.
func (r *Reconciler) handlePaymentCaptured(ev *Event, raw map[string]interface{}) error {
	pe := ev.Payload.Payment.Entity

	return r.store.WithTx(func(tx Store) error {
		p, err := tx.GetPaymentByGatewayPaymentID(pe.ID)
		if err != nil {
			return err
		}
		if p == nil {
			log.Printf("webhook: no payment row for gateway payment %s, ignoring capture", pe.ID)
			return nil
		}

		now := time.Unix(ev.CreatedAt, 0)
		if ev.CreatedAt == 0 {
			now = time.Now()
		}
		p.PaymentStatus = models.PaymentStatusCaptured
		p.OrderStatus = models.OrderStatusPaid
		p.AmountPaid = float64(pe.Amount) / 100
		p.PaymentCompletedAt = &now
		applyPaymentEntityDetail(p, pe)
		p.WebhookMetadata = raw
		return tx.SavePayment(p)
	})
}

// handlePaymentFailed fails the subscription and its unresolved payment row.
// The status filter on the payment lookup prevents re-applying the failure
// to an already-resolved row.
func (r *Reconciler) handlePaymentFailed(ev *Event, raw map[string]interface{}) error {
	pe := ev.Payload.Payment.Entity

	var failed *models.PlanSubscription
	err := r.store.WithTx(func(tx Store) error {
		now := time.Now()

		if pe.SubscriptionID != "" {
			sub, err := tx.GetSubscriptionByGatewayID(pe.SubscriptionID)
			if err != nil {
				return err
			}
			if sub == nil {
				log.Printf("webhook: payment.failed for unknown subscription %s, ignoring", pe.SubscriptionID)
				return nil
			}
			if ApplyTransition(sub, models.GatewayStatusFailed, now) {
				sub.SubscriptionMetadata = append(sub.SubscriptionMetadata, raw)
				if err := tx.SaveSubscription(sub); err != nil {
					return err
				}
				failed = sub
			}

			p, err := tx.FindCreatedPaymentForSubscription(pe.SubscriptionID)
			if err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			failPayment(p, pe, raw, now)
			return tx.SavePayment(p)
		}

		// One-time order failure
		if pe.OrderID == "" {
			log.Printf("webhook: payment.failed without order or subscription id, ignoring payment %s", pe.ID)
			return nil
		}
		p, err := tx.GetPaymentByOrderID(pe.OrderID)
		if err != nil {
			return err
		}
		if p == nil || p.PaymentStatus == models.PaymentStatusCaptured {
			return nil
		}
		failPayment(p, pe, raw, now)
		return tx.SavePayment(p)
	})
	if err != nil {
		return err
	}
	if failed != nil {
		r.notify(failed, "payment_failed")
	}
	return nil
}

// handleSubscriptionAuthenticated is the activation path: the gateway has
// confirmed the mandate, so the subscription flips to active and the cycle-0
// payment is captured. The target state is idempotent, not incremented, so
// redelivery re-writes the same values.
func (r *Reconciler) handleSubscriptionAuthenticated(ev *Event, raw map[string]interface{}) error {
	se := ev.Payload.Subscription.Entity

	var activated *models.PlanSubscription
	err := r.store.WithTx(func(tx Store) error {
		sub, err := tx.GetSubscriptionByGatewayID(se.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			log.Printf("webhook: subscription.authenticated for unknown subscription %s, ignoring", se.ID)
			return nil
		}

		now := time.Now()
		switch sub.SubscriptionStatus {
		case models.GatewayStatusCreated, models.GatewayStatusAuthenticated:
			if sub.SubscriptionStatus == models.GatewayStatusCreated {
				// A lapsed subscription the sweep has not reached yet would
				// collide with the active-per-user index; retire it inside
				// the same transaction before this row enters the predicate.
				if _, err := tx.CompleteLapsedSubscriptionsForUser(sub.UserID, now); err != nil {
					return err
				}
				activated = sub
			}
			sub.SubscriptionStatus = models.GatewayStatusAuthenticated
			sub.Status = models.SubscriptionStatusActive
			if sub.StartsAt.IsZero() {
				sub.StartsAt = now
			}
			if sub.ExpiresAt == nil {
				sub.ExpiresAt = ExpiryFor(sub.StartsAt, sub.DurationType)
			}
		default:
			// Already active or past it; a late authenticated event must not
			// regress the row.
		}
		sub.SubscriptionMetadata = append(sub.SubscriptionMetadata, raw)
		if err := tx.SaveSubscription(sub); err != nil {
			return err
		}

		// Capture the cycle-0 (setup fee) payment if one is still pending.
		p, err := tx.FindCreatedPaymentForSubscription(se.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		pe := ev.Payload.Payment.Entity
		if pe.ID != "" {
			p.PaymentID = strPtr(pe.ID)
			applyPaymentEntityDetail(p, pe)
		}
		p.PaymentStatus = models.PaymentStatusCaptured
		p.OrderStatus = models.OrderStatusPaid
		if p.AmountPaid == 0 {
			p.AmountPaid = p.Amount
		}
		p.PaymentCompletedAt = &now
		p.WebhookMetadata = raw
		return tx.SavePayment(p)
	})
	if err != nil {
		return err
	}
	if activated != nil {
		r.notify(activated, "activated")
	}
	return nil
}

// handleSubscriptionCharged records one billing cycle's charge and refreshes
// the cycle counters from the gateway's authoritative paid_count. Unlike
// every other handler this one inserts rather than updates, so it checks for
// an existing row for the (subscription, cycle) pair first: naive redelivery
// would otherwise double-record the charge.
func (r *Reconciler) handleSubscriptionCharged(ev *Event, raw map[string]interface{}) error {
	se := ev.Payload.Subscription.Entity
	pe := ev.Payload.Payment.Entity

	return r.store.WithTx(func(tx Store) error {
		sub, err := tx.GetSubscriptionByGatewayID(se.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			// The charge arrived before the checkout row was committed or
			// before subscription.authenticated. No-op: the gateway will
			// redeliver after the row exists.
			log.Printf("webhook: subscription.charged for unknown subscription %s, ignoring", se.ID)
			return nil
		}

		now := time.Now()
		cycle := se.PaidCount

		existing, err := tx.FindPaymentForCycle(se.ID, cycle)
		if err != nil {
			return err
		}
		if existing == nil {
			p := &models.Payment{
				UserID:                 sub.UserID,
				PlanSubscriptionID:     &sub.ID,
				PlanID:                 &sub.PlanID,
				PaymentID:              strPtr(pe.ID),
				RazorpaySubscriptionID: strPtr(se.ID),
				BillingCycleNumber:     &cycle,
				ReceiptNumber:          newReceiptNumber(),
				Amount:                 float64(pe.Amount) / 100,
				TotalAmount:            float64(pe.Amount) / 100,
				AmountPaid:             float64(pe.Amount) / 100,
				Currency:               models.Currency(pe.Currency),
				PaymentGateway:         models.GatewayRazorpay,
				PaymentStatus:          models.PaymentStatusCaptured,
				OrderStatus:            models.OrderStatusCharged,
				PaymentType:            models.PaymentTypeRecurring,
				IsSubscriptionPayment:  true,
				CustomerEmail:          pe.Email,
				CustomerContact:        pe.Contact,
				WebhookMetadata:        raw,
				PaymentCompletedAt:     &now,
			}
			applyPaymentEntityDetail(p, pe)
			if err := tx.CreatePayment(p); err != nil {
				return err
			}
		}

		// Counters come from the gateway's running counts, set not
		// incremented, so duplicates and out-of-order arrivals converge.
		SetBillingCycleCounters(sub, se.PaidCount, se.TotalCount)
		if sub.SubscriptionStatus == models.GatewayStatusCreated {
			// Charged arrived before authenticated. Clear any stale lapsed
			// row first so the active-per-user index admits this one.
			if _, err := tx.CompleteLapsedSubscriptionsForUser(sub.UserID, now); err != nil {
				return err
			}
		}
		ApplyTransition(sub, models.GatewayStatusActive, now)
		if sub.StartsAt.IsZero() {
			sub.StartsAt = now
		}
		// Each paid cycle carries the term forward from the start date, so
		// the expiry sweep never outruns a subscription the gateway is still
		// charging.
		if end := ExpiryAfterCycles(sub.StartsAt, sub.DurationType, se.PaidCount); end != nil {
			sub.ExpiresAt = end
		}
		sub.SubscriptionMetadata = append(sub.SubscriptionMetadata, raw)
		return tx.SaveSubscription(sub)
	})
}

// subscriptionStatusHandler builds a handler that moves the subscription to
// an absolute target status. Covers completed, cancelled, halted and resumed.
func (r *Reconciler) subscriptionStatusHandler(target models.GatewayStatus, notifyEvent string) func(*Event, map[string]interface{}) error {
	return func(ev *Event, raw map[string]interface{}) error {
		se := ev.Payload.Subscription.Entity

		var moved *models.PlanSubscription
		err := r.store.WithTx(func(tx Store) error {
			sub, err := tx.GetSubscriptionByGatewayID(se.ID)
			if err != nil {
				return err
			}
			if sub == nil {
				log.Printf("webhook: %s for unknown subscription %s, ignoring", ev.Event, se.ID)
				return nil
			}

			if !ApplyTransition(sub, target, time.Now()) {
				log.Printf("webhook: subscription %s already past %s (current %s), ignoring %s",
					se.ID, target, sub.SubscriptionStatus, ev.Event)
				return nil
			}
			sub.SubscriptionMetadata = append(sub.SubscriptionMetadata, raw)
			if err := tx.SaveSubscription(sub); err != nil {
				return err
			}
			moved = sub
			return nil
		})
		if err != nil {
			return err
		}
		if moved != nil {
			r.notify(moved, notifyEvent)
		}
		return nil
	}
}

// applyPaymentEntityDetail copies method and instrument detail from a webhook
// payment entity onto the payment row.
func applyPaymentEntityDetail(p *models.Payment, pe PaymentEntity) {
	if pe.Method != "" {
		p.PaymentMethod = pe.Method
	}
	if pe.Card.Last4 != "" {
		p.CardLast4 = pe.Card.Last4
		p.CardNetwork = pe.Card.Network
	}
	if pe.Wallet != "" {
		p.Wallet = pe.Wallet
	}
	if pe.VPA != "" {
		p.VPA = pe.VPA
	}
	if pe.Bank != "" {
		p.Bank = pe.Bank
	}
	if pe.Email != "" && p.CustomerEmail == "" {
		p.CustomerEmail = pe.Email
	}
	if pe.Contact != "" && p.CustomerContact == "" {
		p.CustomerContact = pe.Contact
	}
}

// failPayment marks a payment row failed with the gateway's error detail
func failPayment(p *models.Payment, pe PaymentEntity, raw map[string]interface{}, now time.Time) {
	if pe.ID != "" {
		p.PaymentID = strPtr(pe.ID)
	}
	p.PaymentStatus = models.PaymentStatusFailed
	p.OrderStatus = models.OrderStatusFailed
	p.ErrorCode = pe.ErrorCode
	p.ErrorDescription = pe.ErrorDescription
	p.PaymentFailedAt = &now
	p.WebhookMetadata = raw
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
