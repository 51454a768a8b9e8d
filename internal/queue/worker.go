package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) error

// Worker processes jobs of a single type from the queue
type Worker struct {
	queue      *Queue
	jobType    JobType
	handler    JobHandler
	numWorkers int
	wg         sync.WaitGroup
	quit       chan struct{}
}

// NewWorker creates a new worker
func NewWorker(queue *Queue, jobType JobType, handler JobHandler, numWorkers int) *Worker {
	return &Worker{
		queue:      queue,
		jobType:    jobType,
		handler:    handler,
		numWorkers: numWorkers,
		quit:       make(chan struct{}),
	}
}

// Start starts the worker goroutines
func (w *Worker) Start() {
	log.Printf("Starting %d workers for job type %s", w.numWorkers, w.jobType)
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
}

// Stop stops the worker and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	log.Printf("Stopping workers for job type %s", w.jobType)
	close(w.quit)
	w.wg.Wait()
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.quit:
			log.Printf("Worker %d for job type %s stopped", workerID, w.jobType)
			return
		default:
			job, err := w.queue.Dequeue(w.jobType, 1*time.Second)
			if err != nil {
				log.Printf("Error dequeueing %s job: %v", w.jobType, err)
				time.Sleep(1 * time.Second)
				continue
			}
			if job == nil {
				continue
			}

			if err := w.handler(context.Background(), *job); err != nil {
				log.Printf("Error processing job %s of type %s: %v", job.ID, w.jobType, err)
				if retryErr := w.queue.Retry(job, err); retryErr != nil {
					log.Printf("Error retrying job %s: %v", job.ID, retryErr)
				}
				continue
			}
			log.Printf("Worker %d completed job %s of type %s", workerID, job.ID, w.jobType)
		}
	}
}
