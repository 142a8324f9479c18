package memory

import (
	"context"
	"strings"
	"time"

	"jarvis-webhook/internal/domain"
)

// Window is the in-process Store. Each user owns an independent slice
// guarded by that user's lock. Users without traffic for the idle timeout
// are forgotten.
type Window struct {
	max   int
	users users[[]domain.ConversationTurn]
}

type WindowOption func(*Window)

// WithIdleTimeout sets how long an inactive user's window is kept.
func WithIdleTimeout(d time.Duration) WindowOption {
	return func(w *Window) {
		if d > 0 {
			w.users.idle = d
		}
	}
}

func withClock(now func() time.Time) WindowOption {
	return func(w *Window) { w.users.now = now }
}

func NewWindow(max int, opts ...WindowOption) *Window {
	if max <= 0 {
		max = DefaultWindow
	}
	w := &Window{max: max, users: newUsers[[]domain.ConversationTurn](DefaultIdle)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) Append(_ context.Context, userID string, turn domain.ConversationTurn) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	e := w.users.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := append(e.val, turn)
	// Only the new element can be out of place.
	for i := len(turns) - 1; i > 0 && turns[i].Timestamp.Before(turns[i-1].Timestamp); i-- {
		turns[i], turns[i-1] = turns[i-1], turns[i]
	}
	e.val = w.trim(turns)
	return nil
}

// Merge folds externally fetched history into the window. Turns already
// present are skipped, so merging the same history twice is a no-op.
func (w *Window) Merge(_ context.Context, userID string, history []domain.ConversationTurn) error {
	if strings.TrimSpace(userID) == "" || len(history) == 0 {
		return nil
	}
	e := w.users.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := e.val
	for _, t := range history {
		if !t.Role.Valid() || containsTurn(turns, t) {
			continue
		}
		turns = append(turns, t)
	}
	sortTurns(turns)
	e.val = w.trim(turns)
	return nil
}

func (w *Window) AsContext(_ context.Context, userID string) ([]domain.ConversationTurn, error) {
	e := w.users.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.ConversationTurn, len(e.val))
	copy(out, e.val)
	return out, nil
}

func (w *Window) trim(turns []domain.ConversationTurn) []domain.ConversationTurn {
	if len(turns) > w.max {
		return append([]domain.ConversationTurn(nil), turns[len(turns)-w.max:]...)
	}
	return turns
}
