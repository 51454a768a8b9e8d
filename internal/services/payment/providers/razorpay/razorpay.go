package razorpay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/truckmitra/backend/internal/utils"
)

// Client is a thin HTTP client for the Razorpay REST API. Signatures on
// anything client- or webhook-supplied are verified locally, never trusted
// from the caller.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// Config holds configuration for the Razorpay client
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

// NewClient creates a new Razorpay client
func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}

	return &Client{
		keyID:         config.KeyID,
		keySecret:     config.KeySecret,
		webhookSecret: config.WebhookSecret,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// KeyID returns the public key id needed by the client-side checkout widget
func (c *Client) KeyID() string {
	return c.keyID
}

// WebhookConfigured reports whether a webhook secret is set. When it is not,
// webhook deliveries cannot be authenticated and the endpoint runs degraded.
func (c *Client) WebhookConfigured() bool {
	return c.webhookSecret != ""
}

// Order represents a Razorpay one-time order
type Order struct {
	ID         string                 `json:"id"`
	Entity     string                 `json:"entity"`
	Amount     int64                  `json:"amount"` // minor units (paise)
	AmountPaid int64                  `json:"amount_paid"`
	AmountDue  int64                  `json:"amount_due"`
	Currency   string                 `json:"currency"`
	Receipt    string                 `json:"receipt"`
	Status     string                 `json:"status"`
	Notes      map[string]interface{} `json:"notes"`
	CreatedAt  int64                  `json:"created_at"`
}

// Subscription represents a Razorpay recurring subscription
type Subscription struct {
	ID             string                 `json:"id"`
	Entity         string                 `json:"entity"`
	PlanID         string                 `json:"plan_id"`
	Status         string                 `json:"status"`
	CurrentStart   int64                  `json:"current_start"`
	CurrentEnd     int64                  `json:"current_end"`
	ChargeAt       int64                  `json:"charge_at"`
	StartAt        int64                  `json:"start_at"`
	EndAt          int64                  `json:"end_at"`
	TotalCount     int                    `json:"total_count"`
	PaidCount      int                    `json:"paid_count"`
	RemainingCount int                    `json:"remaining_count"`
	ShortURL       string                 `json:"short_url"`
	Notes          map[string]interface{} `json:"notes"`
	CreatedAt      int64                  `json:"created_at"`
}

// PaymentDetail represents authoritative payment detail fetched from Razorpay
type PaymentDetail struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int64  `json:"amount"` // minor units
	Currency         string `json:"currency"`
	Status           string `json:"status"` // created, authorized, captured, refunded, failed
	OrderID          string `json:"order_id"`
	InvoiceID        string `json:"invoice_id"`
	Method           string `json:"method"` // card, upi, netbanking, wallet
	Captured         bool   `json:"captured"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Fee              int64  `json:"fee"`
	Tax              int64  `json:"tax"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Bank             string `json:"bank"`
	Wallet           string `json:"wallet"`
	VPA              string `json:"vpa"`
	Card             struct {
		Last4   string `json:"last4"`
		Network string `json:"network"`
		Type    string `json:"type"`
	} `json:"card"`
	CreatedAt int64 `json:"created_at"`
}

// apiError is the Razorpay error envelope
type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder creates a one-time order with Razorpay. Amount is in minor
// units. Notes carry machine-readable correlation ids (user id, plan id,
// local payment id) read back from webhooks.
func (c *Client) CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	var order Order
	if err := c.post("/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateSubscription creates a recurring subscription against a Razorpay plan.
// totalCount 0 means the gateway default (charge until cancelled).
func (c *Client) CreateSubscription(planID string, totalCount int, notes map[string]interface{}) (*Subscription, error) {
	body := map[string]interface{}{
		"plan_id":         planID,
		"customer_notify": 1,
		"notes":           notes,
	}
	if totalCount > 0 {
		body["total_count"] = totalCount
	}

	var sub Subscription
	if err := c.post("/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FetchPayment fetches authoritative payment detail by gateway payment id
func (c *Client) FetchPayment(paymentID string) (*PaymentDetail, error) {
	var detail PaymentDetail
	if err := c.get("/payments/"+paymentID, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// VerifyCheckoutSignature verifies the signature the client-side checkout
// returns after a successful one-time payment:
// HMAC-SHA256(order_id + "|" + payment_id, key_secret), hex encoded.
func (c *Client) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return utils.VerifyHMAC(orderID+"|"+paymentID, signature, c.keySecret)
}

// VerifySubscriptionSignature verifies the client-side signature for the
// recurring flow: HMAC-SHA256(payment_id + "|" + subscription_id, key_secret).
func (c *Client) VerifySubscriptionSignature(subscriptionID, paymentID, signature string) bool {
	return utils.VerifyHMAC(paymentID+"|"+subscriptionID, signature, c.keySecret)
}

// VerifyWebhookSignature verifies the X-Razorpay-Signature header over the
// raw webhook body. Returns false when no webhook secret is configured.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return false
	}
	return utils.VerifyHMAC(string(body), signature, c.webhookSecret)
}

// post sends an authenticated POST request and decodes the response
func (c *Client) post(path string, body interface{}, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(httpReq, out)
}

// get sends an authenticated GET request and decodes the response
func (c *Client) get(path string, out interface{}) error {
	httpReq, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("razorpay error: %s (%s)", apiErr.Error.Description, apiErr.Error.Code)
		}
		return fmt.Errorf("razorpay error: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
