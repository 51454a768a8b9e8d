package subscription

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truckmitra/backend/internal/models"
)

// notifiedEvent records one call to the fake notifier
type notifiedEvent struct {
	userID         uuid.UUID
	subscriptionID uuid.UUID
	event          string
}

type fakeNotifier struct {
	events []notifiedEvent
}

func (n *fakeNotifier) SubscriptionEvent(userID, subscriptionID uuid.UUID, event string) {
	n.events = append(n.events, notifiedEvent{userID: userID, subscriptionID: subscriptionID, event: event})
}

func newReconcilerFixture() (*Reconciler, *fakeStore, *fakeGateway) {
	store := newFakeStore()
	gateway := newFakeGateway()
	return NewReconciler(store, gateway, nil), store, gateway
}

// seedRecurringCheckout plants the rows initiateSubscription would create:
// a created subscription plus a pending cycle-0 payment.
func seedRecurringCheckout(store *fakeStore, gatewaySubID string, duration models.DurationType) (*models.PlanSubscription, *models.Payment) {
	user := store.addUser(&models.User{Name: "Ravi Kumar", Phone: "9876543210"})
	plan := store.addPlan(&models.Plan{
		Name:         "Vendor Monthly",
		Slug:         "vendor-monthly",
		Price:        199.00,
		Currency:     models.CurrencyINR,
		DurationType: duration,
		TotalCycles:  12,
		Active:       true,
	})

	cycleZero := 0
	sub := &models.PlanSubscription{
		UserID:                 user.ID,
		PlanID:                 plan.ID,
		PlanName:               plan.Name,
		RazorpaySubscriptionID: &gatewaySubID,
		PricePaid:              plan.Price,
		DurationType:           duration,
		Status:                 models.SubscriptionStatusCreated,
		SubscriptionStatus:     models.GatewayStatusCreated,
		TotalBillingCycles:     12,
		RemainingBillingCycles: 12,
		AutoRenew:              true,
	}
	store.CreateSubscription(sub)

	p := &models.Payment{
		UserID:                 user.ID,
		PlanSubscriptionID:     &sub.ID,
		PlanID:                 &plan.ID,
		RazorpaySubscriptionID: &gatewaySubID,
		BillingCycleNumber:     &cycleZero,
		ReceiptNumber:          "RCPT_TEST_0001",
		Amount:                 199.00,
		TotalAmount:            199.00,
		Currency:               models.CurrencyINR,
		PaymentGateway:         models.GatewayRazorpay,
		PaymentStatus:          models.PaymentStatusCreated,
		OrderStatus:            models.OrderStatusCreated,
		PaymentType:            models.PaymentTypeSetupFee,
		IsSubscriptionPayment:  true,
	}
	store.CreatePayment(p)
	return sub, p
}

func subscriptionEventBody(event, subID string, paidCount, totalCount int, payment PaymentEntity) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"entity": "event",
		"event":  event,
		"payload": map[string]interface{}{
			"subscription": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":              subID,
					"status":          "",
					"paid_count":      paidCount,
					"total_count":     totalCount,
					"remaining_count": totalCount - paidCount,
				},
			},
			"payment": map[string]interface{}{
				"entity": payment,
			},
		},
		"created_at": time.Now().Unix(),
	})
	return body
}

func deliver(t *testing.T, r *Reconciler, g *fakeGateway, body []byte) {
	t.Helper()
	require.NoError(t, r.HandleEvent(body, g.signBody(body)))
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	r, store, _ := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{})
	err := r.HandleEvent(body, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Nothing mutated, nothing recorded
	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusCreated, sub.SubscriptionStatus)
	assert.Empty(t, store.webhookEvents)
}

func TestHandleEventDegradedModeAcceptsWithoutSecret(t *testing.T) {
	r, store, g := newReconcilerFixture()
	g.webhookSecret = ""
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{})
	require.NoError(t, r.HandleEvent(body, ""))

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusAuthenticated, sub.SubscriptionStatus)
}

func TestHandleEventUnparseablePayloadIsRecordedAndAcked(t *testing.T) {
	r, store, g := newReconcilerFixture()

	body := []byte("{not json")
	require.NoError(t, r.HandleEvent(body, g.signBody(body)))

	require.Len(t, store.webhookEvents, 1)
	assert.Equal(t, "unparseable", store.webhookEvents[0].Event)
	assert.NotEmpty(t, store.webhookEvents[0].Error)
}

func TestHandleEventUnknownEventIsAcked(t *testing.T) {
	r, store, g := newReconcilerFixture()

	body := subscriptionEventBody("subscription.updated", "sub_unknown", 0, 0, PaymentEntity{})
	deliver(t, r, g, body)

	require.Len(t, store.webhookEvents, 1)
	assert.True(t, store.webhookEvents[0].Processed)
}

func TestSubscriptionAuthenticatedActivatesAndCapturesSetupFee(t *testing.T) {
	r, store, g := newReconcilerFixture()
	_, payment := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{
		ID:     "pay_cycle0",
		Amount: 19900,
		Method: "upi",
		VPA:    "ravi@upi",
	})
	deliver(t, r, g, body)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusAuthenticated, sub.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.False(t, sub.StartsAt.IsZero())
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, sub.StartsAt.AddDate(0, 1, 0), *sub.ExpiresAt)

	got, _ := store.GetPaymentByGatewayPaymentID("pay_cycle0")
	require.NotNil(t, got)
	assert.Equal(t, payment.ID, got.ID)
	assert.Equal(t, models.PaymentStatusCaptured, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPaid, got.OrderStatus)
	assert.Equal(t, 199.00, got.AmountPaid)
}

func TestSubscriptionAuthenticatedRedeliveryIsIdempotent(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{ID: "pay_cycle0", Amount: 19900})
	deliver(t, r, g, body)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	firstStart := sub.StartsAt
	firstExpiry := *sub.ExpiresAt

	deliver(t, r, g, body)

	sub, _ = store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusAuthenticated, sub.SubscriptionStatus)
	assert.Equal(t, firstStart, sub.StartsAt)
	assert.Equal(t, firstExpiry, *sub.ExpiresAt)
	assert.Len(t, store.payments, 1)
}

func TestLateAuthenticatedDoesNotRegressActiveSubscription(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	charged := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", 1, 12, PaymentEntity{
		ID:             "pay_cycle1",
		Amount:         19900,
		Currency:       "INR",
		SubscriptionID: "sub_test001",
	})
	deliver(t, r, g, charged)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	require.Equal(t, models.GatewayStatusActive, sub.SubscriptionStatus)

	late := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 1, 12, PaymentEntity{})
	deliver(t, r, g, late)

	sub, _ = store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusActive, sub.SubscriptionStatus)
}

func TestSubscriptionChargedInsertsCyclePaymentAndSetsCounters(t *testing.T) {
	r, store, g := newReconcilerFixture()
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)
	sub.SubscriptionStatus = models.GatewayStatusAuthenticated
	sub.Status = models.SubscriptionStatusActive

	body := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", 3, 12, PaymentEntity{
		ID:             "pay_cycle3",
		Amount:         19900,
		Currency:       "INR",
		SubscriptionID: "sub_test001",
		Method:         "card",
		Email:          "ravi@example.com",
	})
	deliver(t, r, g, body)

	got, _ := store.FindPaymentForCycle("sub_test001", 3)
	require.NotNil(t, got)
	assert.Equal(t, models.PaymentStatusCaptured, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusCharged, got.OrderStatus)
	assert.Equal(t, models.PaymentTypeRecurring, got.PaymentType)
	assert.Equal(t, 199.00, got.Amount)
	assert.True(t, got.IsSubscriptionPayment)
	require.NotNil(t, got.PlanID)
	assert.Equal(t, sub.PlanID, *got.PlanID)

	fresh, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusActive, fresh.SubscriptionStatus)
	assert.Equal(t, 3, fresh.CompletedBillingCycles)
	assert.Equal(t, 12, fresh.TotalBillingCycles)
	assert.Equal(t, 9, fresh.RemainingBillingCycles)
}

func TestSubscriptionChargedRedeliveryDoesNotDuplicate(t *testing.T) {
	r, store, g := newReconcilerFixture()
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)
	sub.SubscriptionStatus = models.GatewayStatusActive
	sub.Status = models.SubscriptionStatusActive

	body := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", 2, 12, PaymentEntity{
		ID:             "pay_cycle2",
		Amount:         19900,
		Currency:       "INR",
		SubscriptionID: "sub_test001",
	})
	deliver(t, r, g, body)
	deliver(t, r, g, body)
	deliver(t, r, g, body)

	var cycleRows int
	for _, p := range store.payments {
		if p.BillingCycleNumber != nil && *p.BillingCycleNumber == 2 {
			cycleRows++
		}
	}
	assert.Equal(t, 1, cycleRows)

	fresh, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, 2, fresh.CompletedBillingCycles)
	assert.Equal(t, 10, fresh.RemainingBillingCycles)
}

func TestChargedBeforeAuthenticatedActivatesDirectly(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	// charged arrives first; created -> active is a legal skip
	charged := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", 1, 12, PaymentEntity{
		ID:             "pay_cycle1",
		Amount:         19900,
		Currency:       "INR",
		SubscriptionID: "sub_test001",
	})
	deliver(t, r, g, charged)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusActive, sub.SubscriptionStatus)
	assert.Equal(t, 1, sub.CompletedBillingCycles)
}

func TestSubscriptionChargedForUnknownSubscriptionIsNoOp(t *testing.T) {
	r, store, g := newReconcilerFixture()

	body := subscriptionEventBody(EventSubscriptionCharged, "sub_phantom", 1, 12, PaymentEntity{
		ID:             "pay_x",
		Amount:         19900,
		SubscriptionID: "sub_phantom",
	})
	deliver(t, r, g, body)

	assert.Empty(t, store.payments)
	assert.Empty(t, store.subscriptions)
	// Still acknowledged and audited
	require.Len(t, store.webhookEvents, 1)
}

func TestPaymentAuthorizedResolvesPendingRow(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventPaymentAuthorized, "sub_test001", 0, 12, PaymentEntity{
		ID:             "pay_cycle0",
		Amount:         19900,
		SubscriptionID: "sub_test001",
		Method:         "upi",
		VPA:            "ravi@upi",
	})
	deliver(t, r, g, body)

	got, _ := store.GetPaymentByGatewayPaymentID("pay_cycle0")
	require.NotNil(t, got)
	assert.Equal(t, models.PaymentStatusAuthorized, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusAuthenticated, got.OrderStatus)
	assert.Equal(t, "upi", got.PaymentMethod)

	// Redelivery no-ops: the row no longer matches the created/pending filter
	deliver(t, r, g, body)
	assert.Len(t, store.payments, 1)
}

func TestPaymentFailedFailsSubscriptionAndPayment(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	body := subscriptionEventBody(EventPaymentFailed, "sub_test001", 0, 12, PaymentEntity{
		ID:               "pay_cycle0",
		SubscriptionID:   "sub_test001",
		ErrorCode:        "BAD_REQUEST_ERROR",
		ErrorDescription: "Payment failed due to insufficient funds",
	})
	deliver(t, r, g, body)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusFailed, sub.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionStatusFailed, sub.Status)

	got, _ := store.GetPaymentByGatewayPaymentID("pay_cycle0")
	require.NotNil(t, got)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, "BAD_REQUEST_ERROR", got.ErrorCode)
	assert.NotNil(t, got.PaymentFailedAt)
}

func TestPaymentFailedSkipsCapturedOneTimeOrder(t *testing.T) {
	r, store, g := newReconcilerFixture()
	user := store.addUser(&models.User{Name: "Meena", Phone: "9000000001"})

	orderID := "order_test9"
	store.CreatePayment(&models.Payment{
		UserID:          user.ID,
		RazorpayOrderID: &orderID,
		ReceiptNumber:   "RCPT_TEST_0009",
		Amount:          4999.00,
		PaymentStatus:   models.PaymentStatusCaptured,
		OrderStatus:     models.OrderStatusPaid,
		PaymentType:     models.PaymentTypeOneTime,
	})

	body, _ := json.Marshal(map[string]interface{}{
		"entity": "event",
		"event":  EventPaymentFailed,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": PaymentEntity{ID: "pay_late", OrderID: orderID, ErrorCode: "SERVER_ERROR"},
			},
		},
	})
	deliver(t, r, g, body)

	got, _ := store.GetPaymentByOrderID(orderID)
	assert.Equal(t, models.PaymentStatusCaptured, got.PaymentStatus)
	assert.Empty(t, got.ErrorCode)
}

func TestTerminalStatusEvents(t *testing.T) {
	for _, tt := range []struct {
		event  string
		status models.GatewayStatus
		coarse models.SubscriptionStatus
	}{
		{EventSubscriptionCancelled, models.GatewayStatusCancelled, models.SubscriptionStatusCancelled},
		{EventSubscriptionCompleted, models.GatewayStatusCompleted, models.SubscriptionStatusCompleted},
		{EventSubscriptionHalted, models.GatewayStatusHalted, models.SubscriptionStatusPaused},
	} {
		t.Run(tt.event, func(t *testing.T) {
			r, store, g := newReconcilerFixture()
			sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)
			sub.SubscriptionStatus = models.GatewayStatusActive
			sub.Status = models.SubscriptionStatusActive

			body := subscriptionEventBody(tt.event, "sub_test001", 1, 12, PaymentEntity{})
			deliver(t, r, g, body)

			fresh, _ := store.GetSubscriptionByGatewayID("sub_test001")
			assert.Equal(t, tt.status, fresh.SubscriptionStatus)
			assert.Equal(t, tt.coarse, fresh.Status)
		})
	}
}

func TestResumedAfterHalted(t *testing.T) {
	r, store, g := newReconcilerFixture()
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)
	sub.SubscriptionStatus = models.GatewayStatusHalted
	sub.Status = models.SubscriptionStatusPaused

	body := subscriptionEventBody(EventSubscriptionResumed, "sub_test001", 1, 12, PaymentEntity{})
	deliver(t, r, g, body)

	fresh, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.GatewayStatusActive, fresh.SubscriptionStatus)
	assert.NotNil(t, fresh.ResumedAt)
}

func TestCancelAfterCancelIsNoOp(t *testing.T) {
	r, store, g := newReconcilerFixture()
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)
	now := time.Now().Add(-time.Hour)
	sub.SubscriptionStatus = models.GatewayStatusCancelled
	sub.Status = models.SubscriptionStatusCancelled
	sub.CancelledAt = &now

	body := subscriptionEventBody(EventSubscriptionCancelled, "sub_test001", 1, 12, PaymentEntity{})
	deliver(t, r, g, body)

	fresh, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, now, *fresh.CancelledAt)
}

func TestEveryDeliveryIsAudited(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	for i := 0; i < 3; i++ {
		body := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", i+1, 12, PaymentEntity{
			ID:             fmt.Sprintf("pay_cycle%d", i+1),
			Amount:         19900,
			SubscriptionID: "sub_test001",
		})
		deliver(t, r, g, body)
	}

	require.Len(t, store.webhookEvents, 3)
	for _, ev := range store.webhookEvents {
		assert.Equal(t, EventSubscriptionCharged, ev.Event)
		assert.Equal(t, "sub_test001", ev.RazorpaySubscriptionID)
		assert.True(t, ev.Processed)
		assert.NotNil(t, ev.ProcessedAt)
	}
}

func TestNotifierFiresOncePerTransition(t *testing.T) {
	store := newFakeStore()
	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	r := NewReconciler(store, gateway, notifier)
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	authBody := subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_setup001", Amount: 19900, SubscriptionID: "sub_test001",
	})
	deliver(t, r, gateway, authBody)
	deliver(t, r, gateway, authBody)

	cancelBody := subscriptionEventBody(EventSubscriptionCancelled, "sub_test001", 1, 12, PaymentEntity{})
	deliver(t, r, gateway, cancelBody)
	deliver(t, r, gateway, cancelBody)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, "activated", notifier.events[0].event)
	assert.Equal(t, "cancelled", notifier.events[1].event)
	for _, ev := range notifier.events {
		assert.Equal(t, sub.UserID, ev.userID)
		assert.Equal(t, sub.ID, ev.subscriptionID)
	}
}

func TestSweepSparesAutoRenewingSubscription(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	deliver(t, r, g, subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_setup001", Amount: 19900, SubscriptionID: "sub_test001",
	}))

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	require.NotNil(t, sub.ExpiresAt)

	// A day past the first term's end the gateway is still charging, so the
	// sweep must not touch the row.
	count, err := store.ExpireLapsedSubscriptions(sub.ExpiresAt.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)

	sub, _ = store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestSubscriptionChargedExtendsTerm(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	deliver(t, r, g, subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_setup001", Amount: 19900, SubscriptionID: "sub_test001",
	}))

	body := subscriptionEventBody(EventSubscriptionCharged, "sub_test001", 2, 12, PaymentEntity{
		ID: "pay_cycle2", Amount: 19900, SubscriptionID: "sub_test001",
	})
	deliver(t, r, g, body)

	sub, _ := store.GetSubscriptionByGatewayID("sub_test001")
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, sub.StartsAt.AddDate(0, 2, 0), *sub.ExpiresAt)
	assert.True(t, sub.IsEntitled(sub.StartsAt.AddDate(0, 1, 15)))

	// Redelivery lands on the same expiry, same row count
	deliver(t, r, g, body)
	sub, _ = store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, sub.StartsAt.AddDate(0, 2, 0), *sub.ExpiresAt)
}

func TestActivationRetiresStaleLapsedSubscription(t *testing.T) {
	r, store, g := newReconcilerFixture()
	sub, _ := seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	// A previous one-time purchase lapsed this morning but the daily sweep
	// has not run yet, so its row is still marked active.
	staleExpiry := time.Now().Add(-2 * time.Hour)
	staleStart := staleExpiry.AddDate(0, -1, 0)
	stale := &models.PlanSubscription{
		UserID:             sub.UserID,
		PlanID:             sub.PlanID,
		StartsAt:           staleStart,
		ExpiresAt:          &staleExpiry,
		Status:             models.SubscriptionStatusActive,
		SubscriptionStatus: models.GatewayStatusActive,
	}
	store.CreateSubscription(stale)

	deliver(t, r, g, subscriptionEventBody(EventSubscriptionAuthenticated, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_setup001", Amount: 19900, SubscriptionID: "sub_test001",
	}))

	got, _ := store.GetSubscription(stale.ID)
	assert.Equal(t, models.GatewayStatusCompleted, got.SubscriptionStatus)

	activated, _ := store.GetSubscriptionByGatewayID("sub_test001")
	assert.Equal(t, models.SubscriptionStatusActive, activated.Status)

	// Exactly one row holds the entitlement
	entitled := 0
	now := time.Now()
	for _, s := range store.subscriptions {
		if s.IsEntitled(now) {
			entitled++
		}
	}
	assert.Equal(t, 1, entitled)
}

func TestPaymentCapturedMarksRowPaid(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	deliver(t, r, g, subscriptionEventBody(EventPaymentAuthorized, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_cycle0", Amount: 19900, SubscriptionID: "sub_test001", Method: "upi",
	}))

	body := subscriptionEventBody(EventPaymentCaptured, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_cycle0", Amount: 19900, SubscriptionID: "sub_test001", Method: "upi",
	})
	deliver(t, r, g, body)

	got, _ := store.GetPaymentByGatewayPaymentID("pay_cycle0")
	require.NotNil(t, got)
	assert.Equal(t, models.PaymentStatusCaptured, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPaid, got.OrderStatus)
	assert.Equal(t, 199.00, got.AmountPaid)
	assert.NotNil(t, got.PaymentCompletedAt)

	// Redelivery writes the same values, no new rows
	deliver(t, r, g, body)
	assert.Len(t, store.payments, 1)
	got, _ = store.GetPaymentByGatewayPaymentID("pay_cycle0")
	assert.Equal(t, models.PaymentStatusCaptured, got.PaymentStatus)
}

func TestPaymentCapturedForUnknownPaymentIsNoOp(t *testing.T) {
	r, store, g := newReconcilerFixture()
	seedRecurringCheckout(store, "sub_test001", models.DurationMonthly)

	deliver(t, r, g, subscriptionEventBody(EventPaymentCaptured, "sub_test001", 0, 12, PaymentEntity{
		ID: "pay_ghost", Amount: 19900,
	}))

	assert.Len(t, store.payments, 1)
	got, _ := store.GetPaymentByGatewayPaymentID("pay_ghost")
	assert.Nil(t, got)
	require.Len(t, store.webhookEvents, 1)
	assert.True(t, store.webhookEvents[0].Processed)
}
