package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/truckmitra/backend/internal/models"
)

// SubscriptionNotifier enqueues notification jobs for subscription lifecycle
// changes. Enqueue failures are logged and dropped; notifications are not
// part of the billing state.
type SubscriptionNotifier struct {
	queue *Queue
}

// NewSubscriptionNotifier creates a queue-backed subscription notifier
func NewSubscriptionNotifier(q *Queue) *SubscriptionNotifier {
	return &SubscriptionNotifier{queue: q}
}

func (n *SubscriptionNotifier) SubscriptionEvent(userID, subscriptionID uuid.UUID, event string) {
	payload := NotifySubscriptionEventPayload{
		UserID:         userID.String(),
		SubscriptionID: subscriptionID.String(),
		Event:          event,
	}
	if _, err := n.queue.EnqueueJob(JobTypeNotifySubscriptionEvent, payload); err != nil {
		log.Printf("Error enqueueing subscription notification for user %s: %v", userID, err)
	}
}

// subscriptionEventMessages maps lifecycle events to the SMS sent to the
// subscriber. Events without an entry are dropped silently.
var subscriptionEventMessages = map[string]string{
	"activated":      "Your TruckMitra subscription is now active. Thank you for subscribing!",
	"payment_failed": "Your TruckMitra subscription payment failed. Please update your payment method to avoid interruption.",
	"halted":         "Your TruckMitra subscription is on hold after repeated payment failures. Please update your payment method.",
	"resumed":        "Your TruckMitra subscription has resumed. Welcome back!",
	"cancelled":      "Your TruckMitra subscription has been cancelled.",
	"completed":      "Your TruckMitra subscription term has completed. Renew anytime to keep your benefits.",
}

// NotifySubscriptionEventHandler returns a handler that resolves the user for
// a subscription event and fans it out as an SMS job.
func NotifySubscriptionEventHandler(db *gorm.DB, q *Queue) JobHandler {
	return func(ctx context.Context, job Job) error {
		var payload NotifySubscriptionEventPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("error unmarshaling notification payload: %w", err)
		}

		message, ok := subscriptionEventMessages[payload.Event]
		if !ok {
			log.Printf("No notification template for subscription event %q, dropping job %s", payload.Event, job.ID)
			return nil
		}

		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			return fmt.Errorf("notification job %s has invalid user id: %w", job.ID, err)
		}

		var user models.User
		if err := db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("error loading user %s for notification: %w", userID, err)
		}

		_, err = q.EnqueueJob(JobTypeSendSMS, SendSMSPayload{
			Phone:   user.Phone,
			Message: message,
		})
		return err
	}
}
