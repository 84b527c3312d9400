// Package notify delivers user-facing events after state changes commit.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event types.
const (
	TypeWithdrawalSubmitted   = "withdrawal_submitted"
	TypeVIPExpired            = "vip_expired"
	TypeVIPActivated          = "vip_activated"
	TypeMonthlyReturnCredited = "monthly_return_credited"
	TypeVIPAssigned           = "vip_assigned"
)

// WithdrawalType returns the event type for a withdrawal entering status.
func WithdrawalType(status string) string {
	return "withdrawal_" + status
}

// Event is a single message for one user.
type Event struct {
	UserID      uint64         `json:"user_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	RelatedData map[string]any `json:"related_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Emitter delivers events.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(context.Context, Event) error { return nil })

type multi []Emitter

// Multi fans an event out to every emitter and joins their errors.
func Multi(emitters ...Emitter) Emitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (m multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if errEmit := e.Emit(ctx, ev); errEmit != nil {
			errs = append(errs, errEmit)
		}
	}
	return errors.Join(errs...)
}

type bestEffort struct {
	next    Emitter
	timeout time.Duration
}

// BestEffort wraps next so Emit returns nil within timeout no matter what next does.
// Failures and timeouts are logged.
func BestEffort(next Emitter, timeout time.Duration) Emitter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if next == nil {
		next = Nop
	}
	return &bestEffort{next: next, timeout: timeout}
}

func (b *bestEffort) Emit(ctx context.Context, ev Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	// The caller's transaction already committed; its cancellation must not drop the event.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.New("notify: emitter panicked")
			}
		}()
		done <- b.next.Emit(emitCtx, ev)
	}()

	select {
	case errEmit := <-done:
		cancel()
		if errEmit != nil {
			log.WithError(errEmit).WithFields(log.Fields{"user_id": ev.UserID, "type": ev.Type}).Warn("notify: emit failed")
		}
	case <-emitCtx.Done():
		cancel()
		log.WithFields(log.Fields{"user_id": ev.UserID, "type": ev.Type}).Warn("notify: emit timed out")
	}
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Emit records ev and returns r.Err.
func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of type typ.
func (r *Recorder) Count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
