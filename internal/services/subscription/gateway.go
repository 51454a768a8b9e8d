package subscription

import (
	"github.com/truckmitra/backend/internal/services/payment/providers/razorpay"
)

// Gateway is the payment-gateway capability the reconciliation core depends
// on. The production implementation is the Razorpay client; tests substitute
// a fake.
type Gateway interface {
	KeyID() string
	WebhookConfigured() bool
	CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (*razorpay.Order, error)
	CreateSubscription(planID string, totalCount int, notes map[string]interface{}) (*razorpay.Subscription, error)
	FetchPayment(paymentID string) (*razorpay.PaymentDetail, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	VerifySubscriptionSignature(subscriptionID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}
