// Package scheduler runs durable delayed jobs stored in Postgres. Jobs survive
// restarts and are delivered at least once.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/HabitBell/internal/models"
	"golang.org/x/sync/errgroup"
)

// HandlerFunc executes one job. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Store persists jobs. repository.JobRepository is the production
// implementation.
type Store interface {
	Schedule(ctx context.Context, job *models.Job) error
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Job, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, runAt time.Time, lastError string) error
	HasPending(ctx context.Context, dedupeKey string) (bool, error)
	CancelPending(ctx context.Context, dedupeKey string) error
}

type Options struct {
	PollInterval time.Duration
	Lease        time.Duration
	BatchSize    int
	Workers      int
	MaxAttempts  int
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.Lease <= 0 {
		o.Lease = 5 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
}

type Scheduler struct {
	store    Store
	opts     Options
	now      func() time.Time
	notifyCh chan struct{}

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func New(store Store, opts Options) *Scheduler {
	opts.normalize()
	return &Scheduler{
		store:    store,
		opts:     opts,
		now:      time.Now,
		notifyCh: make(chan struct{}, 1),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler name to the function that runs its jobs.
func (s *Scheduler) Register(name string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

func (s *Scheduler) handler(name string) (HandlerFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[name]
	return h, ok
}

// DedupeKey identifies the single pending job for a handler and payload.
func DedupeKey(handler string, payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return handler + ":" + string(payload)
	}
	return handler + ":" + buf.String()
}

// ScheduleDelayed runs handler with payload after delay. Scheduling the same
// handler and payload again replaces the pending run instead of adding one.
func (s *Scheduler) ScheduleDelayed(ctx context.Context, delay time.Duration, handler string, payload []byte) error {
	if delay < 0 {
		delay = 0
	}
	job := &models.Job{
		ID:        uuid.New().String(),
		Handler:   handler,
		DedupeKey: DedupeKey(handler, payload),
		Payload:   json.RawMessage(payload),
		RunAt:     s.now().Add(delay),
		Status:    models.JobPending,
	}
	if err := s.store.Schedule(ctx, job); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", handler, err)
	}

	// Wake the loop for jobs due before the next regular poll.
	if delay < s.opts.PollInterval {
		time.AfterFunc(delay, s.Notify)
	}
	return nil
}

// HasPending reports whether a run for handler and payload is queued.
func (s *Scheduler) HasPending(ctx context.Context, handler string, payload []byte) (bool, error) {
	return s.store.HasPending(ctx, DedupeKey(handler, payload))
}

// Cancel drops the queued run for handler and payload, if any. A run that is
// already executing is not affected.
func (s *Scheduler) Cancel(ctx context.Context, handler string, payload []byte) error {
	return s.store.CancelPending(ctx, DedupeKey(handler, payload))
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Scheduler started")
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// Wait a bit for migrations to complete before first check
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	s.RunDue(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		case <-s.notifyCh:
			s.RunDue(ctx)
		}
	}
}

// RunDue claims and executes every job that is due, returning how many ran.
func (s *Scheduler) RunDue(ctx context.Context) int {
	total := 0
	for {
		jobs, err := s.store.ClaimDue(ctx, s.now(), s.opts.Lease, s.opts.BatchSize)
		if err != nil {
			log.Printf("Failed to claim due jobs: %v", err)
			return total
		}
		if len(jobs) == 0 {
			return total
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for _, job := range jobs {
			g.Go(func() error {
				s.execute(gctx, job)
				return nil
			})
		}
		g.Wait()

		total += len(jobs)
		if len(jobs) < s.opts.BatchSize {
			return total
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *models.Job) {
	h, ok := s.handler(job.Handler)
	if !ok {
		log.Printf("Dropping job %s: no handler registered for %q", job.ID, job.Handler)
		s.complete(ctx, job)
		return
	}

	if err := s.run(ctx, h, job); err != nil {
		if job.Attempts >= s.opts.MaxAttempts {
			log.Printf("Dropping job %s (%s) after %d attempts: %v", job.ID, job.DedupeKey, job.Attempts, err)
			s.complete(ctx, job)
			return
		}
		retryAt := s.now().Add(backoff(job.Attempts))
		log.Printf("Job %s (%s) failed, retrying at %s: %v", job.ID, job.DedupeKey, retryAt.Format(time.RFC3339), err)
		if err := s.store.Retry(ctx, job.ID, retryAt, err.Error()); err != nil {
			log.Printf("Failed to reschedule job %s: %v", job.ID, err)
		}
		return
	}
	s.complete(ctx, job)
}

// run calls the handler, turning a panic into an error so one bad job cannot
// stop the loop.
func (s *Scheduler) run(ctx context.Context, h HandlerFunc, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job.Payload)
}

func (s *Scheduler) complete(ctx context.Context, job *models.Job) {
	if err := s.store.Complete(ctx, job.ID); err != nil {
		log.Printf("Failed to complete job %s: %v", job.ID, err)
	}
}

func backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts*attempts) * 30 * time.Second
}
