package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreateBillingConstraints adds the billing invariants that AutoMigrate cannot
// express:
//
//   - at most one authenticated/active subscription per user. The checkout
//     path checks before inserting, but two concurrent checkouts can both
//     pass the check; the partial unique index closes that window.
//   - one payment row per (razorpay_subscription_id, billing_cycle_number),
//     so a redelivered subscription.charged webhook cannot double-record a
//     cycle's charge.
func CreateBillingConstraints() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_billing_constraints",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE UNIQUE INDEX IF NOT EXISTS uniq_plan_subscriptions_one_active_per_user
				ON plan_subscriptions (user_id)
				WHERE subscription_status IN ('authenticated', 'active')
				  AND deleted_at IS NULL;
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_subscription_cycle
				ON payments (razorpay_subscription_id, billing_cycle_number)
				WHERE razorpay_subscription_id IS NOT NULL
				  AND billing_cycle_number IS NOT NULL
				  AND deleted_at IS NULL;
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec(`DROP INDEX IF EXISTS uniq_plan_subscriptions_one_active_per_user;`).Error; err != nil {
				return err
			}
			return tx.Exec(`DROP INDEX IF EXISTS uniq_payments_subscription_cycle;`).Error
		},
	}
}
