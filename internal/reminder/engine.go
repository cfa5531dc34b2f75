// Package reminder drives the arm, fire and re-arm cycle of habit reminders
// on top of a durable delayed-job primitive.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hray3182/HabitBell/internal/models"
	"github.com/hray3182/HabitBell/internal/recurrence"
	"github.com/hray3182/HabitBell/internal/rrule"
)

// FireHandler is the job handler name reminder fires are queued under.
const FireHandler = "habit_reminder.fire"

// DefaultDriftTolerance is how far a fire may land from its scheduled
// instant and still send.
const DefaultDriftTolerance = 2 * time.Minute

// Timer runs handler with payload after delay, durably and at least once.
type Timer interface {
	ScheduleDelayed(ctx context.Context, delay time.Duration, handler string, payload []byte) error
}

// Canceler is implemented by timers that can drop a queued run.
type Canceler interface {
	Cancel(ctx context.Context, handler string, payload []byte) error
}

// PendingChecker is implemented by timers that can tell whether a run is queued.
type PendingChecker interface {
	HasPending(ctx context.Context, handler string, payload []byte) (bool, error)
}

// HabitStore loads habits. GetByID returns nil, nil for a missing habit.
type HabitStore interface {
	GetByID(ctx context.Context, habitID int64) (*models.Habit, error)
	ListActive(ctx context.Context) ([]*models.Habit, error)
}

// CompletionStore reports whether a habit was completed on a date.
type CompletionStore interface {
	Exists(ctx context.Context, habitID int64, date string) (bool, error)
}

// ChannelResolver finds where an owner's reminders go. A nil channel means
// there is nowhere to send.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, userID int64) (*models.Channel, error)
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, ch *models.Channel, n *models.Notification) error
}

// DeliveryLedger records sent reminders. MarkDelivered returns false when the
// instant was already delivered.
type DeliveryLedger interface {
	MarkDelivered(ctx context.Context, habitID int64, date, reminderTime string) (bool, error)
}

// Options tune an Engine. Zero values pick the defaults.
type Options struct {
	LookaheadDays  int
	DriftTolerance time.Duration
	Ledger         DeliveryLedger
}

// Engine arms one pending fire per habit and keeps the chain going.
type Engine struct {
	timer       Timer
	habits      HabitStore
	completions CompletionStore
	channels    ChannelResolver
	sender      Sender
	ledger      DeliveryLedger

	lookahead int
	tolerance time.Duration
	now       func() time.Time
}

func NewEngine(timer Timer, habits HabitStore, completions CompletionStore, channels ChannelResolver, sender Sender, opts Options) *Engine {
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = recurrence.DefaultLookaheadDays
	}
	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = DefaultDriftTolerance
	}
	return &Engine{
		timer:       timer,
		habits:      habits,
		completions: completions,
		channels:    channels,
		sender:      sender,
		ledger:      opts.Ledger,
		lookahead:   opts.LookaheadDays,
		tolerance:   opts.DriftTolerance,
		now:         time.Now,
	}
}

type firePayload struct {
	HabitID int64 `json:"habit_id"`
}

func payloadFor(habitID int64) []byte {
	b, _ := json.Marshal(firePayload{HabitID: habitID})
	return b
}

// Next returns the habit's next reminder without arming it.
func (e *Engine) Next(habit *models.Habit) (*recurrence.ScheduledFire, error) {
	return recurrence.FindNext(habit.Rule(), e.now(), e.lookahead)
}

// Arm queues the habit's next fire, replacing any pending one. It returns nil
// when nothing is scheduled within the lookahead window; the chain then stops.
func (e *Engine) Arm(ctx context.Context, habit *models.Habit) (*recurrence.ScheduledFire, error) {
	now := e.now()
	next, err := recurrence.FindNext(habit.Rule(), now, e.lookahead)
	if err != nil {
		return nil, fmt.Errorf("failed to find next reminder for habit %d: %w", habit.HabitID, err)
	}
	if next == nil {
		log.Printf("No upcoming reminder for habit %d, leaving it unarmed", habit.HabitID)
		if err := e.cancel(ctx, habit.HabitID); err != nil {
			log.Printf("Failed to cancel pending reminder for habit %d: %v", habit.HabitID, err)
		}
		return nil, nil
	}

	if err := e.timer.ScheduleDelayed(ctx, next.At.Sub(now), FireHandler, payloadFor(habit.HabitID)); err != nil {
		return nil, fmt.Errorf("failed to arm habit %d: %w", habit.HabitID, err)
	}
	return next, nil
}

// Unarm stops reminders for a habit. Without a Canceler the pending fire
// still runs and stops itself once it finds the habit gone or inactive.
func (e *Engine) Unarm(ctx context.Context, habitID int64) error {
	if err := e.cancel(ctx, habitID); err != nil {
		return fmt.Errorf("failed to unarm habit %d: %w", habitID, err)
	}
	return nil
}

func (e *Engine) cancel(ctx context.Context, habitID int64) error {
	c, ok := e.timer.(Canceler)
	if !ok {
		return nil
	}
	return c.Cancel(ctx, FireHandler, payloadFor(habitID))
}

// ArmAll arms every active habit that has no pending fire and returns how
// many were armed. Individual failures are logged and skipped.
func (e *Engine) ArmAll(ctx context.Context) (int, error) {
	habits, err := e.habits.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active habits: %w", err)
	}

	checker, canCheck := e.timer.(PendingChecker)
	armed := 0
	for _, habit := range habits {
		if ctx.Err() != nil {
			return armed, ctx.Err()
		}
		if canCheck {
			pending, err := checker.HasPending(ctx, FireHandler, payloadFor(habit.HabitID))
			if err != nil {
				log.Printf("Failed to check pending reminder for habit %d: %v", habit.HabitID, err)
				continue
			}
			if pending {
				continue
			}
		}
		next, err := e.Arm(ctx, habit)
		if err != nil {
			log.Printf("Failed to arm habit %d: %v", habit.HabitID, err)
			continue
		}
		if next != nil {
			armed++
		}
	}
	return armed, nil
}

// Fire is the FireHandler job. It reloads the habit, sends the reminder when
// the fire matches a scheduled instant and nothing suppresses it, then re-arms.
// Delivery problems are logged and never stop the chain; only a failure to
// load the habit or to re-arm is returned, so the job is retried.
func (e *Engine) Fire(ctx context.Context, payload json.RawMessage) error {
	var p firePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.HabitID == 0 {
		log.Printf("Dropping reminder fire with bad payload %s", string(payload))
		return nil
	}

	habit, err := e.habits.GetByID(ctx, p.HabitID)
	if err != nil {
		return fmt.Errorf("failed to load habit %d: %w", p.HabitID, err)
	}
	if habit == nil {
		log.Printf("Habit %d no longer exists, stopping reminders", p.HabitID)
		return nil
	}
	if !habit.Rule().Resolvable() {
		log.Printf("Habit %d is inactive or has no reminder time, stopping reminders", p.HabitID)
		return nil
	}

	e.deliver(ctx, habit)

	_, err = e.Arm(ctx, habit)
	return err
}

func (e *Engine) deliver(ctx context.Context, habit *models.Habit) {
	rule := habit.Rule()
	match, err := recurrence.MatchNow(rule, e.now(), e.tolerance)
	if err != nil {
		log.Printf("Failed to resolve reminder for habit %d: %v", habit.HabitID, err)
		return
	}
	if match == nil {
		log.Printf("Skipping reminder for habit %d: no scheduled time within %s of now", habit.HabitID, e.tolerance)
		return
	}
	date := match.Date.String()

	done, err := e.completions.Exists(ctx, habit.HabitID, date)
	if err != nil {
		log.Printf("Failed to check completion for habit %d on %s: %v", habit.HabitID, date, err)
	} else if done {
		log.Printf("Habit %d already completed on %s, skipping reminder", habit.HabitID, date)
		return
	}

	ch, err := e.channels.ResolveChannel(ctx, habit.UserID)
	if err != nil {
		log.Printf("Failed to resolve channel for user %d: %v", habit.UserID, err)
		return
	}
	if ch == nil {
		log.Printf("No notification channel for user %d, skipping reminder for habit %d", habit.UserID, habit.HabitID)
		return
	}

	if e.ledger != nil {
		first, err := e.ledger.MarkDelivered(ctx, habit.HabitID, date, match.ReminderTime)
		if err != nil {
			log.Printf("Failed to record delivery for habit %d: %v", habit.HabitID, err)
		} else if !first {
			log.Printf("Reminder for habit %d at %s %s already sent", habit.HabitID, date, match.ReminderTime)
			return
		}
	}

	n := &models.Notification{
		HabitID:      habit.HabitID,
		UserID:       habit.UserID,
		Title:        habit.Title,
		Date:         date,
		ReminderTime: match.ReminderTime,
		Schedule:     rrule.Describe(rule),
	}
	if match.Entry != nil {
		n.PhaseLabel = match.Entry.PhaseLabel
		n.MinStartTime = match.Entry.MinStartTime
	}

	if err := e.sender.Send(ctx, ch, n); err != nil {
		log.Printf("Failed to send reminder for habit %d: %v", habit.HabitID, err)
		return
	}
	log.Printf("Sent reminder for habit %d (%s %s, drift %s)", habit.HabitID, date, match.ReminderTime, match.Drift)
}
