package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jarvis-webhook/internal/capability"
	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/prompts"
)

var kst = time.FixedZone("KST", 9*60*60)

// 2024-10-03 is a Thursday.
func testNow() time.Time {
	return time.Date(2024, 10, 3, 14, 30, 0, 0, kst)
}

func testRuntime() capability.Runtime {
	return capability.Runtime{Timeout: time.Second, Now: testNow}
}

func testPrompts(t *testing.T) *prompts.Set {
	t.Helper()
	p, err := prompts.Default()
	require.NoError(t, err)
	return p
}

// scriptedLLM answers by the first rule whose key appears in the system
// prompt or the last message, so one fake can serve several capabilities.
type scriptedLLM struct {
	mu    sync.Mutex
	rules []llmRule
	calls []domain.Completion
}

type llmRule struct {
	match  string
	answer string
	err    error
}

func (s *scriptedLLM) on(match, answer string) *scriptedLLM {
	s.rules = append(s.rules, llmRule{match: match, answer: answer})
	return s
}

func (s *scriptedLLM) fail(match string, err error) *scriptedLLM {
	s.rules = append(s.rules, llmRule{match: match, err: err})
	return s
}

func (s *scriptedLLM) Complete(_ context.Context, in domain.Completion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, in)
	last := ""
	if n := len(in.Messages); n > 0 {
		last = in.Messages[n-1].Content
	}
	for _, r := range s.rules {
		if strings.Contains(in.System, r.match) || strings.Contains(last, r.match) {
			return r.answer, r.err
		}
	}
	return "", nil
}

func (s *scriptedLLM) callsWithSchema() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Schema != nil {
			n++
		}
	}
	return n
}

type fakeNormalizer struct {
	out string
	err error
}

func (f fakeNormalizer) Process(_ context.Context, text string) (string, bool, error) {
	if f.err != nil {
		return text, false, f.err
	}
	if f.out == "" {
		return text, false, nil
	}
	return f.out, true, nil
}

type memPhotos struct {
	mu     sync.Mutex
	photos []domain.PhotoRecord
}

func (m *memPhotos) PutPhoto(_ context.Context, p domain.PhotoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, p)
	return nil
}

func (m *memPhotos) FindPhotosByDate(_ context.Context, userID, date string) ([]domain.PhotoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PhotoRecord
	for _, p := range m.photos {
		if p.UserID == userID && p.Timestamp.In(kst).Format(dateLayout) == date {
			out = append(out, p)
		}
	}
	return out, nil
}

type memSchedules struct {
	mu      sync.Mutex
	entries []domain.ScheduleEntry
}

func (m *memSchedules) PutSchedule(_ context.Context, e domain.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memSchedules) FindSchedules(_ context.Context, userID, date string) ([]domain.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScheduleEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; e.UserID == userID && e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeTopics struct {
	topics []domain.NewsTopic
	err    error
}

func (f fakeTopics) SearchTopics(context.Context, []float32, int) ([]domain.NewsTopic, error) {
	return f.topics, f.err
}

// fakeHistory records every SaveTurns call. saveCtxErr is the context state
// the last call observed.
type fakeHistory struct {
	mu         sync.Mutex
	turns      map[string][]domain.ConversationTurn
	fetchErr   error
	saveErr    error
	saveCtxErr error
	saved      [][]domain.ConversationTurn
}

func (f *fakeHistory) GetHistory(_ context.Context, userID string, limit int) ([]domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	all := f.turns[userID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.ConversationTurn(nil), all...), nil
}

func (f *fakeHistory) SaveTurns(ctx context.Context, userID string, turns ...domain.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCtxErr = ctx.Err()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.turns == nil {
		f.turns = map[string][]domain.ConversationTurn{}
	}
	f.turns[userID] = append(f.turns[userID], turns...)
	f.saved = append(f.saved, turns)
	return nil
}
