package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/truckmitra/backend/internal/services/subscription"
)

// SubscriptionExpiryJob sweeps non-renewing entitlements whose expiry has
// passed. Auto-renewing subscriptions are left to the gateway's webhook
// lifecycle, which extends or terminates their term.
type SubscriptionExpiryJob struct {
	store subscription.Store
}

// NewSubscriptionExpiryJob creates the expiry sweep job
func NewSubscriptionExpiryJob(store subscription.Store) *SubscriptionExpiryJob {
	return &SubscriptionExpiryJob{store: store}
}

// Run executes one sweep
func (j *SubscriptionExpiryJob) Run() {
	count, err := j.store.ExpireLapsedSubscriptions(time.Now())
	if err != nil {
		log.Printf("Error expiring lapsed subscriptions: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Expired %d lapsed subscriptions", count)
	}
}

// Schedule registers the daily sweep on the scheduler
func (j *SubscriptionExpiryJob) Schedule(scheduler *gocron.Scheduler) error {
	_, err := scheduler.Every(1).Day().At("02:00").Do(j.Run)
	return err
}

// ScheduleAllJobs wires every recurring job onto a new scheduler and starts it
func ScheduleAllJobs(store subscription.Store) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	expiryJob := NewSubscriptionExpiryJob(store)
	if err := expiryJob.Schedule(scheduler); err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	log.Println("Scheduled recurring jobs")
	return scheduler, nil
}
