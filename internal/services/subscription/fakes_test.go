package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/payment/providers/razorpay"
	"github.com/truckmitra/backend/internal/utils"
)

// fakeStore is an in-memory Store for exercising the checkout and reconciler
// logic without a database. Transactions are a pass-through; the logic under
// test never relies on rollback, only on the state it reads and writes.
type fakeStore struct {
	users         map[uuid.UUID]*models.User
	plans         map[uuid.UUID]*models.Plan
	subscriptions []*models.PlanSubscription
	payments      []*models.Payment
	webhookEvents []*models.WebhookEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[uuid.UUID]*models.User{},
		plans: map[uuid.UUID]*models.Plan{},
	}
}

func (s *fakeStore) addUser(u *models.User) *models.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addPlan(p *models.Plan) *models.Plan {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.plans[p.ID] = p
	return p
}

func (s *fakeStore) WithTx(fn func(Store) error) error {
	return fn(s)
}

func (s *fakeStore) GetUser(id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (s *fakeStore) GetPlan(id uuid.UUID) (*models.Plan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s not found", id)
	}
	return p, nil
}

func (s *fakeStore) GetPlanBySlug(slug string) (*models.Plan, error) {
	for _, p := range s.plans {
		if p.Slug == slug && p.Active {
			return p, nil
		}
	}
	return nil, fmt.Errorf("plan %s not found", slug)
}

func (s *fakeStore) GetSubscription(id uuid.UUID) (*models.PlanSubscription, error) {
	for _, sub := range s.subscriptions {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ActiveSubscriptionForUser(userID uuid.UUID, now time.Time) (*models.PlanSubscription, error) {
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.IsEntitled(now) {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestSubscriptionForUser(userID uuid.UUID) (*models.PlanSubscription, error) {
	var latest *models.PlanSubscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			latest = sub
		}
	}
	return latest, nil
}

func (s *fakeStore) GetSubscriptionByGatewayID(gatewayID string) (*models.PlanSubscription, error) {
	for _, sub := range s.subscriptions {
		if sub.RazorpaySubscriptionID != nil && *sub.RazorpaySubscriptionID == gatewayID {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateSubscription(sub *models.PlanSubscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = time.Now()
	s.subscriptions = append(s.subscriptions, sub)
	return nil
}

func (s *fakeStore) SaveSubscription(sub *models.PlanSubscription) error {
	for i, existing := range s.subscriptions {
		if existing.ID == sub.ID {
			s.subscriptions[i] = sub
			return nil
		}
	}
	return fmt.Errorf("subscription %s not found", sub.ID)
}

func (s *fakeStore) ExpireLapsedSubscriptions(now time.Time) (int64, error) {
	var count int64
	for _, sub := range s.subscriptions {
		if !sub.AutoRenew && lapsed(sub, now) {
			completeLapsed(sub, now)
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CompleteLapsedSubscriptionsForUser(userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && lapsed(sub, now) {
			completeLapsed(sub, now)
			count++
		}
	}
	return count, nil
}

func lapsed(sub *models.PlanSubscription, now time.Time) bool {
	entitled := sub.SubscriptionStatus == models.GatewayStatusAuthenticated ||
		sub.SubscriptionStatus == models.GatewayStatusActive
	return entitled && sub.ExpiresAt != nil && !sub.ExpiresAt.After(now)
}

func completeLapsed(sub *models.PlanSubscription, now time.Time) {
	sub.Status = models.SubscriptionStatusCompleted
	sub.SubscriptionStatus = models.GatewayStatusCompleted
	sub.CompletedAt = &now
	sub.AutoRenew = false
}

func (s *fakeStore) CreatePayment(p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	s.payments = append(s.payments, p)
	return nil
}

func (s *fakeStore) SavePayment(p *models.Payment) error {
	for i, existing := range s.payments {
		if existing.ID == p.ID {
			s.payments[i] = p
			return nil
		}
	}
	return fmt.Errorf("payment %s not found", p.ID)
}

func (s *fakeStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.RazorpayOrderID != nil && *p.RazorpayOrderID == orderID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetPaymentByGatewayPaymentID(paymentID string) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.PaymentID != nil && *p.PaymentID == paymentID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindCreatedPaymentForSubscription(gatewayID string) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.RazorpaySubscriptionID == nil || *p.RazorpaySubscriptionID != gatewayID {
			continue
		}
		if p.PaymentStatus == models.PaymentStatusCreated || p.PaymentStatus == models.PaymentStatusPending {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindPaymentForCycle(gatewayID string, cycle int) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.RazorpaySubscriptionID != nil && *p.RazorpaySubscriptionID == gatewayID &&
			p.BillingCycleNumber != nil && *p.BillingCycleNumber == cycle {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) RecordWebhookEvent(ev *models.WebhookEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	s.webhookEvents = append(s.webhookEvents, ev)
	return nil
}

func (s *fakeStore) SaveWebhookEvent(ev *models.WebhookEvent) error {
	for i, existing := range s.webhookEvents {
		if existing.ID == ev.ID {
			s.webhookEvents[i] = ev
			return nil
		}
	}
	return fmt.Errorf("webhook event %s not found", ev.ID)
}

// fakeGateway implements Gateway with real HMAC verification so signature
// paths are exercised with genuine signatures.
type fakeGateway struct {
	keySecret     string
	webhookSecret string

	createOrderErr error
	createSubErr   error
	fetchedPayment *razorpay.PaymentDetail

	nextOrderID     string
	nextSubID       string
	lastOrderAmount int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		keySecret:     "test_key_secret",
		webhookSecret: "test_webhook_secret",
		nextOrderID:   "order_test001",
		nextSubID:     "sub_test001",
	}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) WebhookConfigured() bool { return g.webhookSecret != "" }

func (g *fakeGateway) CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (*razorpay.Order, error) {
	if g.createOrderErr != nil {
		return nil, g.createOrderErr
	}
	g.lastOrderAmount = amount
	return &razorpay.Order{
		ID:       g.nextOrderID,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}, nil
}

func (g *fakeGateway) CreateSubscription(planID string, totalCount int, notes map[string]interface{}) (*razorpay.Subscription, error) {
	if g.createSubErr != nil {
		return nil, g.createSubErr
	}
	return &razorpay.Subscription{
		ID:             g.nextSubID,
		PlanID:         planID,
		Status:         "created",
		TotalCount:     totalCount,
		RemainingCount: totalCount,
		ShortURL:       "https://rzp.io/i/test",
		Notes:          notes,
	}, nil
}

func (g *fakeGateway) FetchPayment(paymentID string) (*razorpay.PaymentDetail, error) {
	if g.fetchedPayment != nil {
		return g.fetchedPayment, nil
	}
	return &razorpay.PaymentDetail{
		ID:       paymentID,
		Status:   "captured",
		Captured: true,
		Method:   "upi",
		VPA:      "rider@upi",
	}, nil
}

func (g *fakeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return utils.VerifyHMAC(orderID+"|"+paymentID, signature, g.keySecret)
}

func (g *fakeGateway) VerifySubscriptionSignature(subscriptionID, paymentID, signature string) bool {
	return utils.VerifyHMAC(paymentID+"|"+subscriptionID, signature, g.keySecret)
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if g.webhookSecret == "" {
		return false
	}
	return utils.VerifyHMAC(string(body), signature, g.webhookSecret)
}

// signBody produces a valid webhook signature for a raw body
func (g *fakeGateway) signBody(body []byte) string {
	return utils.SignHMAC(string(body), g.webhookSecret)
}
