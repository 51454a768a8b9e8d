package kyc

import (
	"regexp"
	"strings"

	"github.com/truckmitra/backend/internal/models"
)

var (
	aadhaarPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	rcPattern      = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{1,3}[0-9]{4}$`)
	dlPattern      = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[0-9]{4}[0-9]{7}$`)
)

// FormatVerifier validates document numbers against their published number
// formats. It stands in for a government verification provider; swapping in a
// real provider only needs another Verifier implementation.
type FormatVerifier struct{}

// NewFormatVerifier creates a format-check verifier
func NewFormatVerifier() *FormatVerifier {
	return &FormatVerifier{}
}

// VerifyDocument checks the number against the format for its document type
func (v *FormatVerifier) VerifyDocument(docType models.DocumentType, number string) (bool, map[string]interface{}, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(number, " ", ""))

	var ok bool
	switch docType {
	case models.DocumentTypeAadhaar:
		ok = aadhaarPattern.MatchString(normalized)
	case models.DocumentTypePAN:
		ok = panPattern.MatchString(normalized)
	case models.DocumentTypeRC:
		ok = rcPattern.MatchString(normalized)
	case models.DocumentTypeDL:
		ok = dlPattern.MatchString(normalized)
	default:
		ok = false
	}

	response := map[string]interface{}{
		"provider": "format-check",
		"valid":    ok,
	}
	return ok, response, nil
}
