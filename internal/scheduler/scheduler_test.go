package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/HabitBell/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.Job)}
}

func (m *memStore) pendingFor(key string) *models.Job {
	for _, j := range m.jobs {
		if j.DedupeKey == key && j.Status == models.JobPending {
			return j
		}
	}
	return nil
}

func (m *memStore) Schedule(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.pendingFor(job.DedupeKey); existing != nil {
		existing.RunAt = job.RunAt
		existing.Payload = job.Payload
		existing.Attempts = 0
		return nil
	}
	copied := *job
	copied.Status = models.JobPending
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Job
	for _, j := range m.jobs {
		pendingDue := j.Status == models.JobPending && !j.RunAt.After(now)
		leaseExpired := j.Status == models.JobRunning && j.LockedUntil != nil && j.LockedUntil.Before(now)
		if pendingDue || leaseExpired {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].RunAt.Before(due[b].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*models.Job, 0, len(due))
	for _, j := range due {
		until := now.Add(lease)
		j.Status = models.JobRunning
		j.LockedUntil = &until
		j.Attempts++
		copied := *j
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) Complete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memStore) Retry(ctx context.Context, id string, runAt time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	if m.pendingFor(j.DedupeKey) != nil {
		delete(m.jobs, id)
		return nil
	}
	j.Status = models.JobPending
	j.RunAt = runAt
	j.LockedUntil = nil
	j.LastError = lastError
	return nil
}

func (m *memStore) HasPending(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingFor(key) != nil, nil
}

func (m *memStore) CancelPending(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.pendingFor(key); j != nil {
		delete(m.jobs, j.ID)
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *memStore) only(t *testing.T) models.Job {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) != 1 {
		t.Fatalf("store holds %d jobs, want 1", len(m.jobs))
	}
	for _, j := range m.jobs {
		return *j
	}
	return models.Job{}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestScheduler(store Store) (*Scheduler, *testClock) {
	clock := &testClock{t: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)}
	s := New(store, Options{PollInterval: time.Hour, MaxAttempts: 3})
	s.now = clock.Now
	return s, clock
}

func TestDedupeKeyCompactsPayload(t *testing.T) {
	a := DedupeKey("fire", []byte(`{"habit_id": 7}`))
	b := DedupeKey("fire", []byte(`{"habit_id":7}`))
	if a != b || a != `fire:{"habit_id":7}` {
		t.Errorf("DedupeKey = %q / %q", a, b)
	}
}

func TestScheduleDelayedReplacesPending(t *testing.T) {
	store := newMemStore()
	s, clock := newTestScheduler(store)
	ctx := context.Background()
	payload := []byte(`{"habit_id":7}`)

	if err := s.ScheduleDelayed(ctx, 10*time.Minute, "fire", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ScheduleDelayed(ctx, 30*time.Minute, "fire", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := store.only(t)
	if want := clock.Now().Add(30 * time.Minute); !job.RunAt.Equal(want) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, want)
	}

	pending, _ := s.HasPending(ctx, "fire", payload)
	if !pending {
		t.Error("HasPending = false")
	}
	if err := s.Cancel(ctx, "fire", payload); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if store.count() != 0 {
		t.Error("Cancel left the pending job")
	}
}

func TestRunDueOnlyRunsDueJobs(t *testing.T) {
	store := newMemStore()
	s, clock := newTestScheduler(store)
	ctx := context.Background()

	var mu sync.Mutex
	var ran []string
	s.Register("fire", func(ctx context.Context, payload json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, string(payload))
		return nil
	})

	s.ScheduleDelayed(ctx, time.Minute, "fire", []byte(`{"habit_id":1}`))
	s.ScheduleDelayed(ctx, time.Hour, "fire", []byte(`{"habit_id":2}`))

	if n := s.RunDue(ctx); n != 0 {
		t.Fatalf("RunDue ran %d jobs before they were due", n)
	}

	clock.Advance(2 * time.Minute)
	if n := s.RunDue(ctx); n != 1 {
		t.Fatalf("RunDue ran %d jobs, want 1", n)
	}
	if len(ran) != 1 || ran[0] != `{"habit_id":1}` {
		t.Errorf("ran = %v", ran)
	}
	if store.count() != 1 {
		t.Errorf("store holds %d jobs, want the later one only", store.count())
	}
}

func TestRunDueRetriesThenDrops(t *testing.T) {
	store := newMemStore()
	s, clock := newTestScheduler(store)
	ctx := context.Background()

	calls := 0
	s.Register("flaky", func(ctx context.Context, payload json.RawMessage) error {
		calls++
		return errors.New("boom")
	})
	s.ScheduleDelayed(ctx, 0, "flaky", []byte(`{}`))

	s.RunDue(ctx)
	job := store.only(t)
	if job.Status != models.JobPending || job.LastError != "boom" {
		t.Fatalf("after first failure job = %+v", job)
	}
	if want := clock.Now().Add(30 * time.Second); !job.RunAt.Equal(want) {
		t.Errorf("retry RunAt = %v, want %v", job.RunAt, want)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		s.RunDue(ctx)
	}
	if calls != 3 {
		t.Errorf("handler called %d times, want 3", calls)
	}
	if store.count() != 0 {
		t.Error("job not dropped after max attempts")
	}
}

func TestRunDueKeepsJobScheduledByHandler(t *testing.T) {
	store := newMemStore()
	s, clock := newTestScheduler(store)
	ctx := context.Background()
	payload := []byte(`{"habit_id":9}`)

	s.Register("fire", func(ctx context.Context, p json.RawMessage) error {
		return s.ScheduleDelayed(ctx, 24*time.Hour, "fire", p)
	})
	s.ScheduleDelayed(ctx, 0, "fire", payload)

	s.RunDue(ctx)

	job := store.only(t)
	if job.Status != models.JobPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if want := clock.Now().Add(24 * time.Hour); !job.RunAt.Equal(want) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, want)
	}
}

func TestRunDueDropsUnknownAndRecoversPanics(t *testing.T) {
	store := newMemStore()
	s, _ := newTestScheduler(store)
	ctx := context.Background()

	s.Register("panics", func(ctx context.Context, p json.RawMessage) error {
		panic("bad payload")
	})
	s.ScheduleDelayed(ctx, 0, "missing", []byte(`{}`))
	s.ScheduleDelayed(ctx, 0, "panics", []byte(`{}`))

	if n := s.RunDue(ctx); n != 2 {
		t.Fatalf("RunDue ran %d jobs, want 2", n)
	}
	job := store.only(t)
	if job.Handler != "panics" || job.Status != models.JobPending {
		t.Errorf("remaining job = %+v, want the panicking one queued for retry", job)
	}
}

func TestRunDueReclaimsExpiredLease(t *testing.T) {
	store := newMemStore()
	s, clock := newTestScheduler(store)
	ctx := context.Background()
	s.ScheduleDelayed(ctx, 0, "fire", []byte(`{}`))

	// A crashed worker claimed the job and never finished it.
	if jobs, _ := store.ClaimDue(ctx, clock.Now(), time.Minute, 10); len(jobs) != 1 {
		t.Fatal("setup claim failed")
	}

	ran := 0
	s.Register("fire", func(ctx context.Context, p json.RawMessage) error {
		ran++
		return nil
	})

	s.RunDue(ctx)
	if ran != 0 {
		t.Fatal("job with a live lease was run again")
	}

	clock.Advance(2 * time.Minute)
	s.RunDue(ctx)
	if ran != 1 {
		t.Errorf("expired lease not reclaimed, ran = %d", ran)
	}
	if store.count() != 0 {
		t.Error("reclaimed job not completed")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s, _ := newTestScheduler(newMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
