// Package capability implements the intent-specific answerers the dispatcher
// routes to. Each one talks to its collaborators under a per-call deadline and
// reports failures as domain errors.
package capability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
)

const DefaultCallTimeout = 10 * time.Second

// LLM completes a single prompt.
type LLM interface {
	Complete(ctx context.Context, in domain.Completion) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

type TopicSearcher interface {
	SearchTopics(ctx context.Context, vector []float32, topK int) ([]domain.NewsTopic, error)
}

type PhotoStore interface {
	PutPhoto(ctx context.Context, photo domain.PhotoRecord) error
	FindPhotosByDate(ctx context.Context, userID, date string) ([]domain.PhotoRecord, error)
}

type ScheduleStore interface {
	PutSchedule(ctx context.Context, entry domain.ScheduleEntry) error
	FindSchedules(ctx context.Context, userID, date string) ([]domain.ScheduleEntry, error)
}

// Runtime carries what every capability shares: the per-call deadline, the
// clock and the logger.
type Runtime struct {
	Timeout time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
}

// WithDefaults fills unset fields.
func (r Runtime) WithDefaults() Runtime {
	if r.Timeout <= 0 {
		r.Timeout = DefaultCallTimeout
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	return r
}

func (r Runtime) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.Timeout)
}

// complete runs one model call under its own deadline.
func (r Runtime) complete(ctx context.Context, llm LLM, in domain.Completion, reason string) (string, error) {
	callCtx, cancel := r.call(ctx)
	defer cancel()
	out, err := llm.Complete(callCtx, in)
	if err != nil {
		return "", domain.Upstream(reason, err)
	}
	return out, nil
}
