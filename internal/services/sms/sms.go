package sms

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/truckmitra/backend/internal/config"
)

// Sender delivers SMS messages. Delivery is an external collaborator; the
// onboarding flow only depends on this interface.
type Sender interface {
	Send(phone, message string) error
}

// HTTPSender sends messages through a transactional SMS HTTP API
type HTTPSender struct {
	apiKey     string
	senderID   string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSender creates an SMS sender from configuration
func NewHTTPSender(cfg config.SMSConfig) *HTTPSender {
	return &HTTPSender{
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one SMS message
func (s *HTTPSender) Send(phone, message string) error {
	if s.baseURL == "" {
		// No provider configured; log instead of failing onboarding outright.
		log.Printf("SMS provider not configured, dropping message to %s", phone)
		return nil
	}

	params := url.Values{}
	params.Set("to", phone)
	params.Set("sender", s.senderID)
	params.Set("message", message)
	params.Set("api_key", s.apiKey)

	resp, err := s.httpClient.PostForm(s.baseURL+"/send", params)
	if err != nil {
		return fmt.Errorf("error sending SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("SMS provider error: unexpected status %d", resp.StatusCode)
	}
	return nil
}
