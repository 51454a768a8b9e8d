package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the coarse, user-facing status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusCreated   SubscriptionStatus = "created"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
	SubscriptionStatusFailed    SubscriptionStatus = "failed"
)

// GatewayStatus is the fine-grained subscription status mirroring Razorpay's
// own vocabulary. Activation is driven exclusively by webhooks.
type GatewayStatus string

const (
	GatewayStatusCreated       GatewayStatus = "created"
	GatewayStatusAuthenticated GatewayStatus = "authenticated"
	GatewayStatusActive        GatewayStatus = "active"
	GatewayStatusHalted        GatewayStatus = "halted"
	GatewayStatusCancelled     GatewayStatus = "cancelled"
	GatewayStatusCompleted     GatewayStatus = "completed"
	GatewayStatusFailed        GatewayStatus = "failed"
)

// PlanSubscription represents one recurring plan instance held by a user.
// At most one row per user may be authenticated/active and unexpired; the
// hard guarantee is a partial unique index created in migrations.
type PlanSubscription struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	PlanID   uuid.UUID `gorm:"type:uuid;index;not null" json:"plan_id"`
	Plan     Plan      `gorm:"foreignKey:PlanID" json:"-"`
	PlanName string    `gorm:"type:varchar(255)" json:"plan_name"` // denormalized snapshot

	RazorpaySubscriptionID *string `gorm:"type:varchar(100);uniqueIndex" json:"razorpay_subscription_id,omitempty"`

	PricePaid    float64      `gorm:"type:decimal(12,2)" json:"price_paid"`
	DurationType DurationType `gorm:"type:varchar(20);not null" json:"duration_type"`
	StartsAt     time.Time    `json:"starts_at"`
	ExpiresAt    *time.Time   `json:"expires_at"` // null = non-expiring

	Status             SubscriptionStatus `gorm:"type:varchar(20);not null;default:'created'" json:"status"`
	SubscriptionStatus GatewayStatus      `gorm:"type:varchar(20);not null;default:'created'" json:"subscription_status"`

	CompletedBillingCycles int  `gorm:"default:0" json:"completed_billing_cycles"`
	RemainingBillingCycles int  `gorm:"default:0" json:"remaining_billing_cycles"`
	TotalBillingCycles     int  `gorm:"default:0" json:"total_billing_cycles"`
	AutoRenew              bool `gorm:"default:true" json:"auto_renew"`

	CancelledAt *time.Time `json:"cancelled_at"`
	PausedAt    *time.Time `json:"paused_at"`
	ResumedAt   *time.Time `json:"resumed_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// SubscriptionMetadata is an append-only audit trail of raw gateway payloads
	SubscriptionMetadata JSONArray `gorm:"type:jsonb" json:"-"`
}

// IsTerminal reports whether the subscription has reached an absorbing state.
// halted is not terminal: the gateway may still resume it.
func (s *PlanSubscription) IsTerminal() bool {
	switch s.SubscriptionStatus {
	case GatewayStatusCancelled, GatewayStatusCompleted, GatewayStatusFailed:
		return true
	}
	return false
}

// IsEntitled reports whether the subscription currently grants access
func (s *PlanSubscription) IsEntitled(now time.Time) bool {
	if s.SubscriptionStatus != GatewayStatusAuthenticated && s.SubscriptionStatus != GatewayStatusActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
