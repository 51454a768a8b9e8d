package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/truckmitra/backend/internal/services/sms"
)

// SendSMSHandler returns a handler that delivers queued SMS jobs
func SendSMSHandler(sender sms.Sender) JobHandler {
	return func(ctx context.Context, job Job) error {
		var payload SendSMSPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("error unmarshaling sms payload: %w", err)
		}
		if payload.Phone == "" {
			return fmt.Errorf("sms job %s has no phone number", job.ID)
		}
		return sender.Send(payload.Phone, payload.Message)
	}
}
