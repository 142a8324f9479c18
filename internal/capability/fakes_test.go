package capability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/prompts"
)

var kst = time.FixedZone("KST", 9*60*60)

func testNow() time.Time {
	return time.Date(2024, 10, 3, 14, 30, 0, 0, kst)
}

func testRuntime() Runtime {
	return Runtime{Timeout: time.Second, Now: testNow}
}

func testPrompts(t *testing.T) *prompts.Set {
	t.Helper()
	p, err := prompts.Default()
	require.NoError(t, err)
	return p
}

type fakeLLM struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   []domain.Completion
	// deadlineSeen records whether each call carried a deadline.
	deadlineSeen []bool
}

func (f *fakeLLM) Complete(ctx context.Context, in domain.Completion) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := ctx.Deadline()
	f.deadlineSeen = append(f.deadlineSeen, ok)
	f.calls = append(f.calls, in)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", nil
	}
	out := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return out, nil
}

type fakeScheduleStore struct {
	entries []domain.ScheduleEntry
	put     []domain.ScheduleEntry
	findErr error
	putErr  error
	gotDate string
}

func (f *fakeScheduleStore) PutSchedule(_ context.Context, e domain.ScheduleEntry) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.put = append(f.put, e)
	return nil
}

func (f *fakeScheduleStore) FindSchedules(_ context.Context, _ string, date string) ([]domain.ScheduleEntry, error) {
	f.gotDate = date
	return f.entries, f.findErr
}

type fakePhotoStore struct {
	photos  []domain.PhotoRecord
	put     []domain.PhotoRecord
	putErr  error
	findErr error
	gotDate string
}

func (f *fakePhotoStore) PutPhoto(_ context.Context, p domain.PhotoRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.put = append(f.put, p)
	return nil
}

func (f *fakePhotoStore) FindPhotosByDate(_ context.Context, _ string, date string) ([]domain.PhotoRecord, error) {
	f.gotDate = date
	return f.photos, f.findErr
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	model string
}

func (f *fakeEmbedder) Embed(_ context.Context, model, _ string) ([]float32, error) {
	f.model = model
	return f.vec, f.err
}

type fakeSearcher struct {
	topics []domain.NewsTopic
	err    error
	topK   int
}

func (f *fakeSearcher) SearchTopics(_ context.Context, _ []float32, topK int) ([]domain.NewsTopic, error) {
	f.topK = topK
	return f.topics, f.err
}
