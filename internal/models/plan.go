package models

import (
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// DurationType represents how long one subscription term lasts
type DurationType string

const (
	DurationDaily      DurationType = "daily"
	DurationWeekly     DurationType = "weekly"
	DurationMonthly    DurationType = "monthly"
	DurationQuarterly  DurationType = "quarterly"
	DurationHalfYearly DurationType = "half-yearly"
	DurationYearly     DurationType = "yearly"
	DurationLifetime   DurationType = "lifetime"
)

// Plan represents a subscription plan on the marketplace.
// Recurring plans carry a Razorpay plan reference; lifetime plans are sold
// as a one-time order instead.
type Plan struct {
	Base
	Name           string       `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string       `gorm:"type:varchar(100);uniqueIndex" json:"slug"`
	Description    string       `gorm:"type:text" json:"description"`
	Price          float64      `gorm:"type:decimal(12,2);not null" json:"price"`
	SetupFee       float64      `gorm:"type:decimal(12,2);default:0" json:"setup_fee"`
	Currency       Currency     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	DurationType   DurationType `gorm:"type:varchar(20);not null" json:"duration_type"`
	TotalCycles    int          `gorm:"default:0" json:"total_cycles"` // 0 = until cancelled
	RazorpayPlanID string       `gorm:"type:varchar(100)" json:"razorpay_plan_id,omitempty"`
	Features       JSON         `gorm:"type:jsonb" json:"features"`
	Active         bool         `gorm:"default:true" json:"active"`
}

// BeforeCreate derives the slug from the plan name when none is set
func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if err := p.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	}
	return nil
}

// IsRecurring reports whether the plan bills through a gateway subscription
// rather than a single one-time order.
func (p *Plan) IsRecurring() bool {
	return p.DurationType != DurationLifetime
}
