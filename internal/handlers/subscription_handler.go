package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/subscription"
	"gorm.io/gorm"
)

// SubscriptionHandler handles plan browsing, checkout and verification
type SubscriptionHandler struct {
	db          *gorm.DB
	checkoutSvc *subscription.CheckoutService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(db *gorm.DB, checkoutSvc *subscription.CheckoutService) *SubscriptionHandler {
	return &SubscriptionHandler{
		db:          db,
		checkoutSvc: checkoutSvc,
	}
}

// CheckoutRequest represents the request body for initiating checkout
type CheckoutRequest struct {
	PlanID uuid.UUID `json:"plan_id" binding:"required"`
}

// VerifyRequest represents the client-side checkout result. The subscription
// id is present for recurring plans, the order id for one-time plans.
type VerifyRequest struct {
	RazorpayOrderID        string `json:"razorpay_order_id"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id"`
	RazorpayPaymentID      string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature      string `json:"razorpay_signature" binding:"required"`
}

// ListPlans returns all active plans
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	var plans []models.Plan
	if err := h.db.Where("active = true").Order("price ASC").Find(&plans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// Checkout initiates a plan purchase for the authenticated user
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	userID := currentUserID(c)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params, err := h.checkoutSvc.InitiateCheckout(userID, req.PlanID, subscription.RequestContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrSubscriptionConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "You already have an active subscription"})
		case errors.Is(err, subscription.ErrPlanInactive):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan is not available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate checkout"})
		}
		return
	}

	c.JSON(http.StatusOK, params)
}

// Verify records the client-side checkout result. One-time orders are
// finalized here; recurring subscriptions stay pending until the gateway
// webhook confirms them.
func (h *SubscriptionHandler) Verify(c *gin.Context) {
	userID := currentUserID(c)

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.RazorpaySubscriptionID != "" {
		payment, err := h.checkoutSvc.VerifySubscriptionCheckout(userID, req.RazorpaySubscriptionID, req.RazorpayPaymentID, req.RazorpaySignature)
		if err != nil {
			h.renderVerifyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "pending",
			"message":    "Payment received, subscription will activate shortly",
			"payment_id": payment.ID,
		})
		return
	}

	if req.RazorpayOrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "razorpay_order_id or razorpay_subscription_id required"})
		return
	}

	payment, sub, err := h.checkoutSvc.VerifyCheckout(userID, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		h.renderVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "active",
		"payment_id":   payment.ID,
		"subscription": sub,
	})
}

// CurrentSubscription returns the authenticated user's subscription view
func (h *SubscriptionHandler) CurrentSubscription(c *gin.Context) {
	userID := currentUserID(c)

	sub, err := h.checkoutSvc.CurrentSubscription(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscription"})
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"subscription": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

func (h *SubscriptionHandler) renderVerifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subscription.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
	case errors.Is(err, subscription.ErrSignatureMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment verification failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify payment"})
	}
}

// currentUserID reads the authenticated user id set by the auth middleware
func currentUserID(c *gin.Context) uuid.UUID {
	value, _ := c.Get("user_id")
	id, _ := value.(uuid.UUID)
	return id
}
