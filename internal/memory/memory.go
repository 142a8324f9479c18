// Package memory keeps the rolling per-user conversation window that seeds
// chat generation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"jarvis-webhook/internal/domain"
)

// DefaultWindow matches the history fetched per request, so every fetched
// turn reaches the chat model.
const DefaultWindow = 100

// DefaultIdle is how long a user's in-process state survives without traffic.
const DefaultIdle = 24 * time.Hour

// Store is the conversation memory contract shared by the in-process window
// and the Redis-backed store.
type Store interface {
	Append(ctx context.Context, userID string, turn domain.ConversationTurn) error
	Merge(ctx context.Context, userID string, turns []domain.ConversationTurn) error
	AsContext(ctx context.Context, userID string) ([]domain.ConversationTurn, error)
}

// userEntry is one user's state. mu serializes that user's operations.
type userEntry[T any] struct {
	mu      sync.Mutex
	val     T
	touched time.Time
}

// users hands out one entry per user so operations for the same user are
// serialized while different users proceed in parallel. Entries idle longer
// than idle are dropped on a later get.
type users[T any] struct {
	mu        sync.Mutex
	idle      time.Duration
	now       func() time.Time
	entries   map[string]*userEntry[T]
	lastSweep time.Time
}

func newUsers[T any](idle time.Duration) users[T] {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return users[T]{idle: idle, now: time.Now, entries: make(map[string]*userEntry[T])}
}

func (u *users[T]) get(userID string) *userEntry[T] {
	u.mu.Lock()
	defer u.mu.Unlock()
	now := u.now()
	if now.Sub(u.lastSweep) >= u.idle {
		u.sweepLocked(now)
	}
	e, ok := u.entries[userID]
	if !ok {
		e = &userEntry[T]{}
		u.entries[userID] = e
	}
	e.touched = now
	return e
}

// sweepLocked drops idle entries. An entry handed out by get was touched at
// that moment, so only users without recent traffic are removed.
func (u *users[T]) sweepLocked(now time.Time) {
	for id, e := range u.entries {
		if now.Sub(e.touched) > u.idle {
			delete(u.entries, id)
		}
	}
	u.lastSweep = now
}

func (u *users[T]) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

// sortTurns orders turns ascending by timestamp, keeping insertion order for
// equal timestamps.
func sortTurns(turns []domain.ConversationTurn) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
}

func containsTurn(turns []domain.ConversationTurn, t domain.ConversationTurn) bool {
	for _, existing := range turns {
		if existing.Same(t) {
			return true
		}
	}
	return false
}
