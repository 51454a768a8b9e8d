package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckmitra/backend/internal/services/subscription"
)

// WebhookHandler handles webhooks from the payment gateway
type WebhookHandler struct {
	reconciler *subscription.Reconciler
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler *subscription.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// RazorpayWebhook receives gateway event deliveries. The body must be read
// raw: the signature covers the exact bytes sent, not a re-serialization.
func (h *WebhookHandler) RazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")

	if err := h.reconciler.HandleEvent(body, signature); err != nil {
		if errors.Is(err, subscription.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
		log.Printf("Error processing webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
