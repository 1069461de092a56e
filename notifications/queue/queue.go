// Package queue delivers notifications in background. Deliveries are
// throttled, failed ones are retried until the retries or the TTL of the job
// are exhausted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/google/uuid"
	"github.com/lysco/checkout-backend/notifications"
	"go.vocdoni.io/dvote/log"
)

const (
	// DefaultTTL is how long a job can stay in the queue.
	DefaultTTL = 30 * time.Minute
	// DefaultThrottle is the time between two deliveries.
	DefaultThrottle = 500 * time.Millisecond
	// DefaultQueueMaxRetries is how many times to retry delivering a
	// notification in case the mail service returns an error.
	DefaultQueueMaxRetries = 10
	// sentBufferSize is the capacity of the Sent channel. Finished jobs are
	// dropped from the channel when it is full.
	sentBufferSize = 64
)

// ErrNoService is returned by Push when the queue has no service to deliver
// the notifications.
var ErrNoService = errors.New("no notification service configured")

// Job is a notification waiting to be delivered.
type Job struct {
	ID           uuid.UUID
	Kind         string
	Notification *notifications.Notification
	CreatedAt    time.Time
	Retries      int
	Success      bool
}

// Queue is a FIFO queue that handles the sending of notifications with a TTL
// and throttle time. It uses a goconcurrentqueue.FIFO queue to store the jobs
// and a channel to report the finished ones.
type Queue struct {
	// Sent receives every job that leaves the queue, delivered or not.
	Sent chan *Job

	ctx      context.Context
	items    *goconcurrentqueue.FIFO
	ttl      time.Duration
	throttle time.Duration
	service  notifications.NotificationService
}

// NewQueue creates a new queue with the provided TTL and throttle time. Zero
// values fall back to the defaults.
func NewQueue(ctx context.Context, ttl, throttle time.Duration,
	service notifications.NotificationService,
) *Queue {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if throttle == 0 {
		throttle = DefaultThrottle
	}
	return &Queue{
		Sent:     make(chan *Job, sentBufferSize),
		ctx:      ctx,
		items:    goconcurrentqueue.NewFIFO(),
		ttl:      ttl,
		throttle: throttle,
		service:  service,
	}
}

// Push validates the notification and enqueues it. It returns the id of the
// job created.
func (q *Queue) Push(kind string, n *notifications.Notification) (uuid.UUID, error) {
	if q.service == nil {
		return uuid.Nil, ErrNoService
	}
	if err := n.Validate(); err != nil {
		return uuid.Nil, err
	}
	job := &Job{
		ID:           uuid.New(),
		Kind:         kind,
		Notification: n,
		CreatedAt:    time.Now(),
	}
	if err := q.items.Enqueue(job); err != nil {
		return uuid.Nil, fmt.Errorf("cannot enqueue the notification: %w", err)
	}
	log.Debugw("notification enqueued", "id", job.ID.String(), "kind", kind)
	return job.ID, nil
}

// Len returns the number of jobs waiting.
func (q *Queue) Len() int {
	return q.items.GetLen()
}

// Start starts the queue processing loop. It dequeues one job per throttle
// period and delivers it. The function returns when the context is
// canceled.
func (q *Queue) Start() {
	ticker := time.NewTicker(q.throttle)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			if n := q.items.GetLen(); n > 0 {
				log.Warnw("notification queue stopped with pending jobs", "pending", n)
			}
			return
		case <-ticker.C:
			q.processNext()
		}
	}
}

func (q *Queue) processNext() {
	job, err := q.dequeue()
	if err != nil {
		return
	}
	if err := q.service.SendNotification(q.ctx, job.Notification); err != nil {
		log.Warnw("failed to send notification",
			"id", job.ID.String(),
			"kind", job.Kind,
			"retries", job.Retries,
			"error", err)
		if err := q.reenqueue(job); err != nil {
			log.Warnw("notification dropped",
				"id", job.ID.String(),
				"kind", job.Kind,
				"error", err)
			q.finish(job)
		}
		return
	}
	job.Success = true
	log.Infow("notification sent", "id", job.ID.String(), "kind", job.Kind)
	q.finish(job)
}

func (q *Queue) dequeue() (*Job, error) {
	item, err := q.items.Dequeue()
	if err != nil {
		var qErr *goconcurrentqueue.QueueError
		if !errors.As(err, &qErr) || qErr.Code() != goconcurrentqueue.QueueErrorCodeEmptyQueue {
			log.Warnw("dequeue error", "error", err)
		}
		return nil, err
	}
	job, ok := item.(*Job)
	if !ok {
		log.Warnw("invalid job type in notification queue")
		return nil, fmt.Errorf("invalid job type")
	}
	return job, nil
}

// reenqueue tries to re-enqueue the job. It returns an error if the job has
// reached the maximum number of retries or its TTL has expired.
func (q *Queue) reenqueue(job *Job) error {
	if job.Retries >= DefaultQueueMaxRetries || time.Since(job.CreatedAt) > q.ttl {
		return fmt.Errorf("TTL or max retries reached")
	}
	job.Retries++
	if err := q.items.Enqueue(job); err != nil {
		return fmt.Errorf("cannot enqueue the notification: %w", err)
	}
	log.Debugw("notification re-enqueued", "id", job.ID.String(), "retry", job.Retries)
	return nil
}

// finish reports the job on the Sent channel without blocking the loop.
func (q *Queue) finish(job *Job) {
	select {
	case q.Sent <- job:
	default:
		log.Debugw("sent channel full, job report dropped", "id", job.ID.String())
	}
}
