package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/onboarding"
)

// AuthHandler handles registration, login and phone verification
type AuthHandler struct {
	onboardingSvc *onboarding.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(onboardingSvc *onboarding.Service) *AuthHandler {
	return &AuthHandler{onboardingSvc: onboardingSvc}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required,len=10"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=customer vendor"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OTPRequest represents the request body for requesting an OTP
type OTPRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"omitempty,oneof=registration login"`
}

// VerifyOTPRequest represents the request body for verifying an OTP
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,len=6"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.UserRoleCustomer
	if req.Role == "vendor" {
		role = models.UserRoleVendor
	}

	user, err := h.onboardingSvc.Register(req.Name, req.Phone, req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, onboarding.ErrPhoneTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Phone number already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful, verification code sent",
		"user_id": user.ID,
	})
}

// RequestOTP issues a fresh verification code to a registered phone
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = "registration"
	}

	if err := h.onboardingSvc.RequestOTP(req.Phone, purpose); err != nil {
		if errors.Is(err, onboarding.ErrOTPThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests, try again later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// VerifyOTP validates a submitted code and marks the phone verified
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.onboardingSvc.VerifyOTP(req.Phone, req.Code)
	if err != nil {
		if errors.Is(err, onboarding.ErrInvalidOTP) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Phone verified",
		"user_id": user.ID,
	})
}

// Login authenticates by phone and password
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, tokens, err := h.onboardingSvc.Login(req.Phone, req.Password)
	if err != nil {
		if errors.Is(err, onboarding.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid phone or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"user": gin.H{
			"id":             user.ID,
			"name":           user.Name,
			"phone":          user.Phone,
			"role":           user.Role,
			"phone_verified": user.PhoneVerified,
			"kyc_verified":   user.KYCVerified,
		},
	})
}
