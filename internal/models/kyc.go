package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType represents the kind of identity or vehicle document submitted for KYC
type DocumentType string

const (
	DocumentTypeAadhaar DocumentType = "aadhaar"
	DocumentTypePAN     DocumentType = "pan"
	DocumentTypeRC      DocumentType = "rc"
	DocumentTypeDL      DocumentType = "dl"
)

// DocumentStatus represents the verification status of a submitted document
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// KYCDocument represents a document submitted for verification.
// The document number is stored masked; the raw verifier response is kept for audit.
type KYCDocument struct {
	Base
	UserID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	User             User           `gorm:"foreignKey:UserID" json:"-"`
	VehicleID        *uuid.UUID     `gorm:"type:uuid;index" json:"vehicle_id,omitempty"` // set for RC documents
	Type             DocumentType   `gorm:"type:varchar(20);not null" json:"type"`
	MaskedNumber     string         `gorm:"type:varchar(50)" json:"masked_number"`
	FileURL          string         `gorm:"type:varchar(500)" json:"file_url"`
	Status           DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RejectionReason  string         `gorm:"type:varchar(255)" json:"rejection_reason,omitempty"`
	ProviderResponse JSON           `gorm:"type:jsonb" json:"-"`
	VerifiedAt       *time.Time     `json:"verified_at"`
}
