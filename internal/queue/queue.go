package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSendSMS                 JobType = "send_sms"
	JobTypeNotifySubscriptionEvent JobType = "notify_subscription_event"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const (
	queueKeyPrefix    = "truckmitra:queue:"
	failedKeyPrefix   = "truckmitra:queue:failed:"
	DefaultMaxRetries = 3
)

// SendSMSPayload is the payload for a send_sms job
type SendSMSPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NotifySubscriptionEventPayload is the payload for a subscription event notification job
type NotifySubscriptionEventPayload struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	Event          string `json:"event"`
}

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
	Error      string          `json:"error,omitempty"`
}

// Queue is a redis-backed job queue
type Queue struct {
	client *redis.Client
	ctx    context.Context
}

// NewQueue creates a new queue
func NewQueue(client *redis.Client) *Queue {
	return &Queue{
		client: client,
		ctx:    context.Background(),
	}
}

// EnqueueJob adds a job to the queue for its type
func (q *Queue) EnqueueJob(jobType JobType, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("error marshaling job: %w", err)
	}

	if err := q.client.LPush(q.ctx, queueKey(jobType), jobBytes).Err(); err != nil {
		return "", fmt.Errorf("error enqueueing job: %w", err)
	}

	log.Printf("Enqueued job %s of type %s", job.ID, jobType)
	return job.ID, nil
}

// Dequeue blocks up to timeout waiting for a job of the given type.
// Returns nil when the queue is empty.
func (q *Queue) Dequeue(jobType JobType, timeout time.Duration) (*Job, error) {
	result, err := q.client.BRPop(q.ctx, timeout, queueKey(jobType)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error dequeueing job: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("error unmarshaling job: %w", err)
	}
	job.Status = JobStatusProcessing
	return &job, nil
}

// Retry requeues a job after incrementing its retry count. Jobs past their
// retry budget land on the failed list instead.
func (q *Queue) Retry(job *Job, jobErr error) error {
	job.RetryCount++
	job.Error = jobErr.Error()

	if job.RetryCount > job.MaxRetries {
		return q.fail(job)
	}

	job.Status = JobStatusPending
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("error marshaling job for retry: %w", err)
	}
	if err := q.client.LPush(q.ctx, queueKey(job.Type), jobBytes).Err(); err != nil {
		return fmt.Errorf("error requeueing job: %w", err)
	}
	log.Printf("Requeued job %s of type %s (attempt %d/%d)", job.ID, job.Type, job.RetryCount, job.MaxRetries)
	return nil
}

func (q *Queue) fail(job *Job) error {
	job.Status = JobStatusFailed
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("error marshaling failed job: %w", err)
	}
	if err := q.client.LPush(q.ctx, failedKeyPrefix+string(job.Type), jobBytes).Err(); err != nil {
		return fmt.Errorf("error recording failed job: %w", err)
	}
	log.Printf("Job %s of type %s failed permanently: %s", job.ID, job.Type, job.Error)
	return nil
}

func queueKey(jobType JobType) string {
	return queueKeyPrefix + string(jobType)
}
