package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"gorm.io/gorm"
)

// Store is the ledger access layer for payments and subscriptions. The
// checkout orchestrator and the webhook reconciler are concurrent writers,
// never owners: no method assumes exclusive access to a row between read and
// write, and every multi-row mutation goes through WithTx.
//
// Lookup methods return (nil, nil) when no row matches; webhook handlers
// treat that as "target row not found yet" and no-op.
type Store interface {
	// WithTx runs fn inside a database transaction. The transaction is
	// rolled back when fn returns an error or panics.
	WithTx(fn func(Store) error) error

	GetUser(id uuid.UUID) (*models.User, error)
	GetPlan(id uuid.UUID) (*models.Plan, error)
	GetPlanBySlug(slug string) (*models.Plan, error)

	GetSubscription(id uuid.UUID) (*models.PlanSubscription, error)
	ActiveSubscriptionForUser(userID uuid.UUID, now time.Time) (*models.PlanSubscription, error)
	LatestSubscriptionForUser(userID uuid.UUID) (*models.PlanSubscription, error)
	GetSubscriptionByGatewayID(gatewayID string) (*models.PlanSubscription, error)
	CreateSubscription(sub *models.PlanSubscription) error
	SaveSubscription(sub *models.PlanSubscription) error
	ExpireLapsedSubscriptions(now time.Time) (int64, error)
	CompleteLapsedSubscriptionsForUser(userID uuid.UUID, now time.Time) (int64, error)

	CreatePayment(p *models.Payment) error
	SavePayment(p *models.Payment) error
	GetPaymentByOrderID(orderID string) (*models.Payment, error)
	GetPaymentByGatewayPaymentID(paymentID string) (*models.Payment, error)
	FindCreatedPaymentForSubscription(gatewayID string) (*models.Payment, error)
	FindPaymentForCycle(gatewayID string, cycle int) (*models.Payment, error)

	RecordWebhookEvent(ev *models.WebhookEvent) error
	SaveWebhookEvent(ev *models.WebhookEvent) error
}

// GormStore implements Store on a gorm connection
type GormStore struct {
	db *gorm.DB
}

// NewStore creates a ledger store backed by the given database
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithTx runs fn inside a gorm transaction; gorm rolls back on error or panic
func (s *GormStore) WithTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// GetUser fetches a user by id
func (s *GormStore) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

// GetPlan fetches a plan by id
func (s *GormStore) GetPlan(id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.First(&plan, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error finding plan: %w", err)
	}
	return &plan, nil
}

// GetPlanBySlug fetches an active plan by slug
func (s *GormStore) GetPlanBySlug(slug string) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.First(&plan, "slug = ? AND active = true", slug).Error; err != nil {
		return nil, fmt.Errorf("error finding plan: %w", err)
	}
	return &plan, nil
}

// GetSubscription fetches a subscription by id, or nil
func (s *GormStore) GetSubscription(id uuid.UUID) (*models.PlanSubscription, error) {
	var sub models.PlanSubscription
	err := s.db.First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}

// ActiveSubscriptionForUser returns the user's authenticated/active unexpired
// subscription, or nil when there is none.
func (s *GormStore) ActiveSubscriptionForUser(userID uuid.UUID, now time.Time) (*models.PlanSubscription, error) {
	var sub models.PlanSubscription
	err := s.db.
		Where("user_id = ?", userID).
		Where("subscription_status IN ?", []models.GatewayStatus{models.GatewayStatusAuthenticated, models.GatewayStatusActive}).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding active subscription: %w", err)
	}
	return &sub, nil
}

// LatestSubscriptionForUser returns the user's most recent subscription row,
// or nil when the user never started a checkout. Used by the status query so
// a not-yet-activated checkout shows as pending instead of missing.
func (s *GormStore) LatestSubscriptionForUser(userID uuid.UUID) (*models.PlanSubscription, error) {
	var sub models.PlanSubscription
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscriptionByGatewayID fetches a subscription by its gateway id, or nil
func (s *GormStore) GetSubscriptionByGatewayID(gatewayID string) (*models.PlanSubscription, error) {
	var sub models.PlanSubscription
	err := s.db.First(&sub, "razorpay_subscription_id = ?", gatewayID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}

// CreateSubscription inserts a new subscription row
func (s *GormStore) CreateSubscription(sub *models.PlanSubscription) error {
	if err := s.db.Create(sub).Error; err != nil {
		return fmt.Errorf("error creating subscription: %w", err)
	}
	return nil
}

// SaveSubscription persists all fields of a subscription row
func (s *GormStore) SaveSubscription(sub *models.PlanSubscription) error {
	if err := s.db.Save(sub).Error; err != nil {
		return fmt.Errorf("error saving subscription: %w", err)
	}
	return nil
}

// ExpireLapsedSubscriptions marks lapsed non-renewing subscriptions as
// completed. Run by the daily sweep job. Auto-renewing rows are excluded:
// the gateway keeps charging those and owns their lifecycle, so their term
// advances with each charged event and ends only via a terminal webhook.
func (s *GormStore) ExpireLapsedSubscriptions(now time.Time) (int64, error) {
	result := s.lapsedScope(now).
		Where("auto_renew = ?", false).
		Updates(completedValues(now))
	if result.Error != nil {
		return 0, fmt.Errorf("error expiring subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CompleteLapsedSubscriptionsForUser retires one user's lapsed rows,
// renewing or not. Called inside an activation transaction so a stale row
// the sweep has not reached cannot collide with the unique
// active-per-user index.
func (s *GormStore) CompleteLapsedSubscriptionsForUser(userID uuid.UUID, now time.Time) (int64, error) {
	result := s.lapsedScope(now).
		Where("user_id = ?", userID).
		Updates(completedValues(now))
	if result.Error != nil {
		return 0, fmt.Errorf("error retiring lapsed subscriptions for user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) lapsedScope(now time.Time) *gorm.DB {
	return s.db.Model(&models.PlanSubscription{}).
		Where("subscription_status IN ?", []models.GatewayStatus{models.GatewayStatusAuthenticated, models.GatewayStatusActive}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now)
}

func completedValues(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":              models.SubscriptionStatusCompleted,
		"subscription_status": models.GatewayStatusCompleted,
		"completed_at":        now,
		"auto_renew":          false,
	}
}

// CreatePayment inserts a new payment row
func (s *GormStore) CreatePayment(p *models.Payment) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

// SavePayment persists all fields of a payment row
func (s *GormStore) SavePayment(p *models.Payment) error {
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("error saving payment: %w", err)
	}
	return nil
}

// GetPaymentByOrderID fetches a payment by gateway order id, or nil
func (s *GormStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.First(&p, "razorpay_order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &p, nil
}

// GetPaymentByGatewayPaymentID fetches a payment by gateway payment id, or nil
func (s *GormStore) GetPaymentByGatewayPaymentID(paymentID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.First(&p, "payment_id = ?", paymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &p, nil
}

// FindCreatedPaymentForSubscription finds the still-unresolved payment row
// for a gateway subscription, or nil. The status filter is what makes
// payment.authorized redelivery a no-op.
func (s *GormStore) FindCreatedPaymentForSubscription(gatewayID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.
		Where("razorpay_subscription_id = ?", gatewayID).
		Where("payment_status IN ?", []models.PaymentStatus{models.PaymentStatusCreated, models.PaymentStatusPending}).
		Order("created_at ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &p, nil
}

// FindPaymentForCycle finds the payment recorded for one billing cycle of a
// gateway subscription, or nil. The dedup check for subscription.charged.
func (s *GormStore) FindPaymentForCycle(gatewayID string, cycle int) (*models.Payment, error) {
	var p models.Payment
	err := s.db.
		Where("razorpay_subscription_id = ?", gatewayID).
		Where("billing_cycle_number = ?", cycle).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &p, nil
}

// RecordWebhookEvent inserts an audit row for a received webhook delivery
func (s *GormStore) RecordWebhookEvent(ev *models.WebhookEvent) error {
	if err := s.db.Create(ev).Error; err != nil {
		return fmt.Errorf("error recording webhook event: %w", err)
	}
	return nil
}

// SaveWebhookEvent persists updates to a webhook audit row
func (s *GormStore) SaveWebhookEvent(ev *models.WebhookEvent) error {
	if err := s.db.Save(ev).Error; err != nil {
		return fmt.Errorf("error saving webhook event: %w", err)
	}
	return nil
}
