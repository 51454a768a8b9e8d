package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/kyc"
)

// KYCHandler handles identity document submission and status
type KYCHandler struct {
	kycSvc *kyc.Service
}

// NewKYCHandler creates a new KYC handler
func NewKYCHandler(kycSvc *kyc.Service) *KYCHandler {
	return &KYCHandler{kycSvc: kycSvc}
}

// SubmitDocumentRequest represents the request body for submitting a document
type SubmitDocumentRequest struct {
	Type      string     `json:"type" binding:"required,oneof=aadhaar pan rc dl"`
	Number    string     `json:"number" binding:"required"`
	FileURL   string     `json:"file_url"`
	VehicleID *uuid.UUID `json:"vehicle_id"`
}

// SubmitDocument accepts a document for verification
func (h *KYCHandler) SubmitDocument(c *gin.Context) {
	userID := currentUserID(c)

	var req SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docType := models.DocumentType(req.Type)
	if docType == models.DocumentTypeRC && req.VehicleID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vehicle_id required for RC documents"})
		return
	}

	doc, err := h.kycSvc.SubmitDocument(userID, docType, req.Number, req.FileURL, req.VehicleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// Documents lists the authenticated user's submitted documents
func (h *KYCHandler) Documents(c *gin.Context) {
	userID := currentUserID(c)

	docs, err := h.kycSvc.Documents(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}
