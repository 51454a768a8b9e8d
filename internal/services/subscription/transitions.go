package subscription

import (
	"time"

	"github.com/truckmitra/backend/internal/models"
)

// The gateway-status values form a graph, not a strict sequence:
//
//	created -> authenticated -> active <-> halted
//	active|halted -> cancelled|completed|failed
//
// cancelled, completed and failed are absorbing. A state never transitions
// to itself: redelivering the event a row already reflects is a no-op, which
// lets callers key side effects off the ApplyTransition result and fire them
// exactly once.
var legalTransitions = map[models.GatewayStatus]map[models.GatewayStatus]bool{
	models.GatewayStatusCreated: {
		models.GatewayStatusAuthenticated: true,
		models.GatewayStatusActive:        true, // authenticated may be skipped when events arrive out of order
		models.GatewayStatusCancelled:     true,
		models.GatewayStatusFailed:        true,
	},
	models.GatewayStatusAuthenticated: {
		models.GatewayStatusActive:    true,
		models.GatewayStatusHalted:    true,
		models.GatewayStatusCancelled: true,
		models.GatewayStatusCompleted: true,
		models.GatewayStatusFailed:    true,
	},
	models.GatewayStatusActive: {
		models.GatewayStatusHalted:    true,
		models.GatewayStatusCancelled: true,
		models.GatewayStatusCompleted: true,
		models.GatewayStatusFailed:    true,
	},
	models.GatewayStatusHalted: {
		models.GatewayStatusActive:    true, // resume
		models.GatewayStatusCancelled: true,
		models.GatewayStatusCompleted: true,
		models.GatewayStatusFailed:    true,
	},
	// terminal states admit nothing further
	models.GatewayStatusCancelled: {},
	models.GatewayStatusCompleted: {},
	models.GatewayStatusFailed:    {},
}

// CanTransition reports whether moving a subscription from current to target
// is legal.
func CanTransition(current, target models.GatewayStatus) bool {
	targets, ok := legalTransitions[current]
	return ok && targets[target]
}

// coarseStatusFor maps the fine-grained gateway status onto the coarse,
// user-facing status.
func coarseStatusFor(gw models.GatewayStatus) models.SubscriptionStatus {
	switch gw {
	case models.GatewayStatusAuthenticated, models.GatewayStatusActive:
		return models.SubscriptionStatusActive
	case models.GatewayStatusHalted:
		return models.SubscriptionStatusPaused
	case models.GatewayStatusCancelled:
		return models.SubscriptionStatusCancelled
	case models.GatewayStatusCompleted:
		return models.SubscriptionStatusCompleted
	case models.GatewayStatusFailed:
		return models.SubscriptionStatusFailed
	default:
		return models.SubscriptionStatusCreated
	}
}

// ApplyTransition moves a subscription to the target gateway status, keeping
// the coarse status and lifecycle timestamps in step. Returns false when the
// transition is illegal from the current state, including redelivery of the
// state the row already holds; callers treat that as a no-op, not an error,
// because webhook redelivery and out-of-order arrival are expected.
func ApplyTransition(sub *models.PlanSubscription, target models.GatewayStatus, now time.Time) bool {
	if !CanTransition(sub.SubscriptionStatus, target) {
		return false
	}

	prev := sub.SubscriptionStatus
	sub.SubscriptionStatus = target
	sub.Status = coarseStatusFor(target)

	switch target {
	case models.GatewayStatusCancelled:
		if sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
		sub.AutoRenew = false
	case models.GatewayStatusCompleted:
		if sub.CompletedAt == nil {
			sub.CompletedAt = &now
		}
	case models.GatewayStatusHalted:
		sub.PausedAt = &now
	case models.GatewayStatusActive:
		if prev == models.GatewayStatusHalted {
			sub.ResumedAt = &now
		}
	}

	return true
}

// SetBillingCycleCounters sets the cycle counters from the gateway's own
// authoritative running counts. Absolute writes, never local increments, so
// redelivered and out-of-order charged events converge on the same values.
func SetBillingCycleCounters(sub *models.PlanSubscription, paidCount, totalCount int) {
	sub.CompletedBillingCycles = paidCount
	sub.TotalBillingCycles = totalCount
	if totalCount > 0 {
		remaining := totalCount - paidCount
		if remaining < 0 {
			remaining = 0
		}
		sub.RemainingBillingCycles = remaining
	}
}

// ExpiryAfterCycles computes when the term ends after a number of paid
// billing cycles, counted from the subscription start. Derived from the
// gateway's running paid count rather than extended locally, so redelivered
// charged events land on the same expiry. Lifetime plans never expire (nil).
func ExpiryAfterCycles(start time.Time, duration models.DurationType, cycles int) *time.Time {
	if cycles < 1 {
		cycles = 1
	}
	var end time.Time
	switch duration {
	case models.DurationDaily:
		end = start.AddDate(0, 0, cycles)
	case models.DurationWeekly:
		end = start.AddDate(0, 0, 7*cycles)
	case models.DurationMonthly:
		end = start.AddDate(0, cycles, 0)
	case models.DurationQuarterly:
		end = start.AddDate(0, 3*cycles, 0)
	case models.DurationHalfYearly:
		end = start.AddDate(0, 6*cycles, 0)
	case models.DurationYearly:
		end = start.AddDate(cycles, 0, 0)
	default:
		return nil
	}
	return &end
}

// ExpiryFor computes when a subscription term ends. Lifetime plans never
// expire (nil).
func ExpiryFor(start time.Time, duration models.DurationType) *time.Time {
	var end time.Time
	switch duration {
	case models.DurationDaily:
		end = start.AddDate(0, 0, 1)
	case models.DurationWeekly:
		end = start.AddDate(0, 0, 7)
	case models.DurationMonthly:
		end = start.AddDate(0, 1, 0)
	case models.DurationQuarterly:
		end = start.AddDate(0, 3, 0)
	case models.DurationHalfYearly:
		end = start.AddDate(0, 6, 0)
	case models.DurationYearly:
		end = start.AddDate(1, 0, 0)
	case models.DurationLifetime:
		return nil
	default:
		return nil
	}
	return &end
}
