package kyc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"gorm.io/gorm"
)

// Verifier checks a document number against a government-backed verification
// provider. External collaborator; call detail is not specified here.
type Verifier interface {
	VerifyDocument(docType models.DocumentType, number string) (verified bool, providerResponse map[string]interface{}, err error)
}

// Service handles KYC document submission and verification
type Service struct {
	db       *gorm.DB
	verifier Verifier
}

// NewService creates a KYC service
func NewService(db *gorm.DB, verifier Verifier) *Service {
	return &Service{db: db, verifier: verifier}
}

// SubmitDocument records a document and runs provider verification. RC
// documents are linked to the vehicle they certify.
func (s *Service) SubmitDocument(userID uuid.UUID, docType models.DocumentType, number, fileURL string, vehicleID *uuid.UUID) (*models.KYCDocument, error) {
	doc := models.KYCDocument{
		UserID:       userID,
		VehicleID:    vehicleID,
		Type:         docType,
		MaskedNumber: maskNumber(number),
		FileURL:      fileURL,
		Status:       models.DocumentStatusPending,
	}
	if err := s.db.Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("error creating document: %w", err)
	}

	verified, providerResp, err := s.verifier.VerifyDocument(docType, number)
	if err != nil {
		// Left pending; verification can be retried out of band.
		return &doc, nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"provider_response": models.JSON(providerResp),
	}
	if verified {
		updates["status"] = models.DocumentStatusVerified
		updates["verified_at"] = now
	} else {
		updates["status"] = models.DocumentStatusRejected
		updates["rejection_reason"] = "provider verification failed"
	}
	if err := s.db.Model(&doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating document: %w", err)
	}

	if verified {
		if err := s.afterVerified(&doc); err != nil {
			return nil, err
		}
	}

	if err := s.db.First(&doc, "id = ?", doc.ID).Error; err != nil {
		return nil, fmt.Errorf("error reloading document: %w", err)
	}
	return &doc, nil
}

// Documents lists a user's submitted documents
func (s *Service) Documents(userID uuid.UUID) ([]models.KYCDocument, error) {
	var docs []models.KYCDocument
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	return docs, nil
}

// afterVerified propagates verification onto the owning user or vehicle
func (s *Service) afterVerified(doc *models.KYCDocument) error {
	switch doc.Type {
	case models.DocumentTypeRC:
		if doc.VehicleID != nil {
			if err := s.db.Model(&models.Vehicle{}).Where("id = ?", doc.VehicleID).
				Update("rc_verified", true).Error; err != nil {
				return fmt.Errorf("error marking vehicle verified: %w", err)
			}
		}
	case models.DocumentTypeAadhaar, models.DocumentTypePAN:
		// The user counts as KYC-verified once both identity documents pass.
		var count int64
		if err := s.db.Model(&models.KYCDocument{}).
			Where("user_id = ? AND type IN ? AND status = ?",
				doc.UserID,
				[]models.DocumentType{models.DocumentTypeAadhaar, models.DocumentTypePAN},
				models.DocumentStatusVerified).
			Distinct("type").Count(&count).Error; err != nil {
			return fmt.Errorf("error counting verified documents: %w", err)
		}
		if count >= 2 {
			if err := s.db.Model(&models.User{}).Where("id = ?", doc.UserID).
				Update("kyc_verified", true).Error; err != nil {
				return fmt.Errorf("error marking user verified: %w", err)
			}
		}
	}
	return nil
}

// maskNumber keeps only the last 4 characters of a document number
func maskNumber(number string) string {
	cleaned := strings.ReplaceAll(number, " ", "")
	if len(cleaned) <= 4 {
		return cleaned
	}
	return strings.Repeat("X", len(cleaned)-4) + cleaned[len(cleaned)-4:]
}
