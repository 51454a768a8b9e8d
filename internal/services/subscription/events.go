package subscription

import "encoding/json"

// Razorpay webhook event names handled by the reconciler. Anything else is
// recorded and ignored.
const (
	EventPaymentAuthorized         = "payment.authorized"
	EventPaymentCaptured           = "payment.captured"
	EventPaymentFailed             = "payment.failed"
	EventSubscriptionAuthenticated = "subscription.authenticated"
	EventSubscriptionCharged       = "subscription.charged"
	EventSubscriptionCompleted     = "subscription.completed"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventSubscriptionHalted        = "subscription.halted"
	EventSubscriptionResumed       = "subscription.resumed"
)

// Event is the Razorpay webhook envelope: an event name plus nested entity
// payloads. Subscription events carry both the subscription entity and the
// payment entity for the cycle that triggered them.
type Event struct {
	Entity    string       `json:"entity"`
	Event     string       `json:"event"`
	Payload   EventPayload `json:"payload"`
	CreatedAt int64        `json:"created_at"`
}

// EventPayload holds the nested entities of a webhook event
type EventPayload struct {
	Payment struct {
		Entity PaymentEntity `json:"entity"`
	} `json:"payment"`
	Subscription struct {
		Entity SubscriptionEntity `json:"entity"`
	} `json:"subscription"`
	Order struct {
		Entity OrderEntity `json:"entity"`
	} `json:"order"`
}

// PaymentEntity is the payment object embedded in webhook payloads
type PaymentEntity struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"` // minor units
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	InvoiceID        string `json:"invoice_id"`
	SubscriptionID   string `json:"subscription_id"` // set for recurring charges
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Bank             string `json:"bank"`
	Wallet           string `json:"wallet"`
	VPA              string `json:"vpa"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Card             struct {
		Last4   string `json:"last4"`
		Network string `json:"network"`
	} `json:"card"`
	CreatedAt int64 `json:"created_at"`
}

// SubscriptionEntity is the subscription object embedded in webhook payloads
type SubscriptionEntity struct {
	ID             string `json:"id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
	CurrentStart   int64  `json:"current_start"`
	CurrentEnd     int64  `json:"current_end"`
	ChargeAt       int64  `json:"charge_at"`
	TotalCount     int    `json:"total_count"`
	PaidCount      int    `json:"paid_count"`
	RemainingCount int    `json:"remaining_count"`
	EndedAt        int64  `json:"ended_at"`
}

// OrderEntity is the order object embedded in webhook payloads
type OrderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// rawPayload decodes the raw body into a generic map for audit storage
func rawPayload(body []byte) map[string]interface{} {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return map[string]interface{}{"unparsed_body": string(body)}
	}
	return raw
}
