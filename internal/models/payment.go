package models

import (
	"time"

	"github.com/google/uuid"
)

// GatewayName tags which payment gateway processed a payment
const GatewayRazorpay = "razorpay"

// PaymentStatus represents the gateway-side status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// OrderStatus represents the order/charge-side status of a payment attempt
type OrderStatus string

const (
	OrderStatusCreated       OrderStatus = "created"
	OrderStatusAuthenticated OrderStatus = "authenticated"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusCharged       OrderStatus = "charged"
	OrderStatusFailed        OrderStatus = "failed"
)

// PaymentType distinguishes what a charge was for
type PaymentType string

const (
	PaymentTypeSetupFee  PaymentType = "setup_fee"
	PaymentTypeRecurring PaymentType = "recurring"
	PaymentTypeOneTime   PaymentType = "one_time"
)

// ErrCodeSignatureMismatch is recorded on payments rejected at the local
// trust boundary. Kept for audit, never silently dropped.
const ErrCodeSignatureMismatch = "SIGNATURE_MISMATCH"

// Payment represents one attempted charge. Rows are created pending at
// checkout initiation and updated in place by whichever of the synchronous
// verify call or an async webhook reaches the terminal transition first.
// Recurring cycle charges are inserted fresh by the subscription.charged event.
type Payment struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User   User      `gorm:"foreignKey:UserID" json:"-"`

	// Back-reference for lookup only; the subscription does not own this row's lifecycle.
	PlanSubscriptionID *uuid.UUID        `gorm:"type:uuid;index" json:"plan_subscription_id,omitempty"`
	PlanSubscription   *PlanSubscription `gorm:"foreignKey:PlanSubscriptionID" json:"-"`

	// PlanID records which plan the charge was initiated for, mirrored into
	// the gateway notes for webhook correlation.
	PlanID *uuid.UUID `gorm:"type:uuid;index" json:"plan_id,omitempty"`

	// Gateway identities. PaymentID is null until the gateway authorizes.
	PaymentID              *string `gorm:"column:payment_id;type:varchar(100);index" json:"payment_id,omitempty"`
	RazorpayOrderID        *string `gorm:"type:varchar(100);index" json:"razorpay_order_id,omitempty"`
	RazorpaySubscriptionID *string `gorm:"type:varchar(100);index:idx_payments_sub_cycle" json:"razorpay_subscription_id,omitempty"`
	BillingCycleNumber     *int    `gorm:"index:idx_payments_sub_cycle" json:"billing_cycle_number,omitempty"` // 0 = setup fee
	ReceiptNumber          string  `gorm:"type:varchar(50);uniqueIndex" json:"receipt_number"`

	Amount         float64  `gorm:"type:decimal(12,2);not null" json:"amount"`
	TotalAmount    float64  `gorm:"type:decimal(12,2)" json:"total_amount"`
	AmountPaid     float64  `gorm:"type:decimal(12,2);default:0" json:"amount_paid"`
	Currency       Currency `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	PaymentGateway string   `gorm:"type:varchar(20);not null;default:'razorpay'" json:"payment_gateway"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'created'" json:"payment_status"`
	OrderStatus   OrderStatus   `gorm:"type:varchar(20);not null;default:'created'" json:"order_status"`
	PaymentType   PaymentType   `gorm:"type:varchar(20);not null" json:"payment_type"`

	IsSubscriptionPayment bool `gorm:"default:false" json:"is_subscription_payment"`
	SignatureVerified     bool `gorm:"default:false" json:"signature_verified"`

	ErrorCode        string `gorm:"type:varchar(50)" json:"error_code,omitempty"`
	ErrorDescription string `gorm:"type:varchar(500)" json:"error_description,omitempty"`

	PaymentMethod     string `gorm:"type:varchar(30)" json:"payment_method"` // card, upi, netbanking, wallet
	PaymentMethodType string `gorm:"type:varchar(30)" json:"payment_method_type"`
	CardLast4         string `gorm:"type:varchar(4)" json:"card_last4,omitempty"`
	CardNetwork       string `gorm:"type:varchar(20)" json:"card_network,omitempty"`
	Wallet            string `gorm:"type:varchar(50)" json:"wallet,omitempty"`
	VPA               string `gorm:"type:varchar(100)" json:"vpa,omitempty"`
	Bank              string `gorm:"type:varchar(100)" json:"bank,omitempty"`

	CustomerName    string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail   string `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerContact string `gorm:"type:varchar(20)" json:"customer_contact"`
	IPAddress       string `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent       string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`

	GatewayResponse JSON `gorm:"type:jsonb" json:"-"`
	WebhookMetadata JSON `gorm:"type:jsonb" json:"-"`

	PaymentInitiatedAt *time.Time `json:"payment_initiated_at"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at"`
	PaymentFailedAt    *time.Time `json:"payment_failed_at"`
}

// WebhookEvent records every received gateway webhook delivery for audit,
// whether or not it was acted on.
type WebhookEvent struct {
	Base
	Gateway                string     `gorm:"type:varchar(20);not null;default:'razorpay'" json:"gateway"`
	Event                  string     `gorm:"type:varchar(100);index" json:"event"`
	RazorpayPaymentID      string     `gorm:"type:varchar(100);index" json:"razorpay_payment_id,omitempty"`
	RazorpaySubscriptionID string     `gorm:"type:varchar(100);index" json:"razorpay_subscription_id,omitempty"`
	PaymentID              *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	RawData                JSON       `gorm:"type:jsonb" json:"raw_data"`
	Processed              bool       `gorm:"default:false" json:"processed"`
	ProcessedAt            *time.Time `json:"processed_at"`
	Error                  string     `gorm:"type:varchar(500)" json:"error,omitempty"`
}
