package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jarvis-webhook/internal/capability"
	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/memory"
	"jarvis-webhook/internal/reply"
)

// ApologyText answers anything the assistant could not handle.
const ApologyText = "죄송해요, 이해하지 못했어요. 다시 말씀해 주세요!"

const (
	noScheduleText  = "일정이 없습니다"
	noNewsText      = "관련된 뉴스를 찾지 못했습니다."
	noPhotoTextFmt  = "%s에 업로드된 사진이 없습니다."
	photoAltTextFmt = "%s에 업로드된 사진"
)

// State is the lifecycle position of one request.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StateDispatched State = "dispatched"
	StateAnswered   State = "answered"
	StateFailed     State = "failed"
)

// Outcome is everything a request produced. Envelope is always valid.
type Outcome struct {
	State    State
	Intent   domain.Intent
	Params   domain.ParamSet
	Answer   string
	Envelope domain.Envelope
	// Turns holds the user and assistant turns of an answered exchange.
	Turns []domain.ConversationTurn
	Err   error
}

type IntentClassifier interface {
	Classify(ctx context.Context, u domain.Utterance) (domain.Intent, domain.ParamSet)
}

type ChatResponder interface {
	Reply(ctx context.Context, window []domain.ConversationTurn, utterance string) (string, error)
}

type ScheduleAnswerer interface {
	Answer(ctx context.Context, userID, utterance string, params domain.ScheduleParams) (string, error)
}

type PhotoKeeper interface {
	Upload(ctx context.Context, userID string, params domain.PhotoParams) string
	Find(ctx context.Context, userID, date string) (domain.PhotoRecord, error)
}

type NewsAnswerer interface {
	Answer(ctx context.Context, utterance string) (string, error)
}

// Capabilities groups the answerers the dispatcher routes to.
type Capabilities struct {
	Chat     ChatResponder
	Schedule ScheduleAnswerer
	Photo    PhotoKeeper
	News     NewsAnswerer
}

func (c Capabilities) validate() error {
	if c.Chat == nil || c.Schedule == nil || c.Photo == nil || c.News == nil {
		return errors.New("usecase: every capability must be set")
	}
	return nil
}

// Dispatcher classifies utterances, routes them to a capability and turns
// every result, including failures, into a reply envelope.
type Dispatcher struct {
	classifier IntentClassifier
	caps       Capabilities
	memory     memory.Store
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewDispatcher wires the router. rt supplies the deadline for memory calls,
// the clock for assistant turns and the logger.
func NewDispatcher(classifier IntentClassifier, caps Capabilities, mem memory.Store, rt capability.Runtime) (*Dispatcher, error) {
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if err := caps.validate(); err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, errors.New("usecase: memory store must not be nil")
	}
	rt = rt.WithDefaults()
	return &Dispatcher{
		classifier: classifier,
		caps:       caps,
		memory:     mem,
		timeout:    rt.Timeout,
		now:        rt.Now,
		logger:     rt.Logger,
	}, nil
}

func (d *Dispatcher) Classify(ctx context.Context, u domain.Utterance) (domain.Intent, domain.ParamSet) {
	intent, params := d.classifier.Classify(ctx, u)
	if params == nil || params.Intent() != intent {
		// A params variant always matches its intent.
		return domain.IntentChat, domain.ChatParams{}
	}
	return intent, params
}

// Dispatch answers an already classified utterance. Errors never escape: they
// become the apology text.
func (d *Dispatcher) Dispatch(ctx context.Context, u domain.Utterance, intent domain.Intent, params domain.ParamSet, history []domain.ConversationTurn) (string, domain.Envelope) {
	out := d.Run(ctx, u, intent, params, history)
	return out.Answer, out.Envelope
}

// Handle classifies and dispatches one utterance.
func (d *Dispatcher) Handle(ctx context.Context, u domain.Utterance, history []domain.ConversationTurn) Outcome {
	intent, params := d.Classify(ctx, u)
	return d.Run(ctx, u, intent, params, history)
}

// Run dispatches a classified utterance and records the exchange in memory
// when it was answered.
func (d *Dispatcher) Run(ctx context.Context, u domain.Utterance, intent domain.Intent, params domain.ParamSet, history []domain.ConversationTurn) Outcome {
	logger := d.logger.With(zap.String("user_id", u.UserID), zap.String("intent", string(intent)))
	out := Outcome{State: StateClassified, Intent: intent, Params: params}
	logger.Debug("state", zap.String("state", string(out.State)))

	out.State = StateDispatched
	block, err := d.route(ctx, u, params, history)
	switch {
	case err == nil:
		out.State = StateAnswered
	case domain.IsKind(err, domain.ErrorEmptyResult):
		block, out.State = reply.TextBlock(emptyText(params)), StateAnswered
	default:
		logger.Warn("capability failed", zap.Error(err))
		block, out.State, out.Err = reply.TextBlock(ApologyText), StateFailed, err
	}

	out.Envelope = reply.Wrap(block)
	out.Answer = reply.AnswerText(out.Envelope)
	logger.Debug("state", zap.String("state", string(out.State)))

	if out.State == StateAnswered {
		out.Turns = d.exchange(u, out.Answer)
		d.remember(ctx, logger, u.UserID, out.Turns)
	}
	return out
}

func (d *Dispatcher) route(ctx context.Context, u domain.Utterance, params domain.ParamSet, history []domain.ConversationTurn) (domain.OutputBlock, error) {
	switch p := params.(type) {
	case domain.ChatParams:
		answer, err := d.caps.Chat.Reply(ctx, d.window(ctx, u.UserID, history), u.Text)
		if err != nil {
			return domain.OutputBlock{}, err
		}
		return reply.TextBlock(answer), nil

	case domain.ScheduleParams:
		answer, err := d.caps.Schedule.Answer(ctx, u.UserID, u.Text, p)
		if err != nil {
			return domain.OutputBlock{}, err
		}
		return reply.TextBlock(answer), nil

	case domain.PhotoParams:
		if !p.IsRetrieval() {
			return reply.TextBlock(d.caps.Photo.Upload(ctx, u.UserID, p)), nil
		}
		photo, err := d.caps.Photo.Find(ctx, u.UserID, p.PhotoDate)
		if err != nil {
			return domain.OutputBlock{}, err
		}
		alt := photo.Description
		if alt == "" {
			alt = fmt.Sprintf(photoAltTextFmt, p.PhotoDate)
		}
		return reply.ImageBlock(photo.PhotoURL, alt), nil

	case domain.NewsParams:
		answer, err := d.caps.News.Answer(ctx, u.Text)
		if err != nil {
			return domain.OutputBlock{}, err
		}
		return reply.TextBlock(answer), nil

	case domain.UnknownParams:
		d.logger.Info("unknown intent label", zap.String("label", p.Label))
		return reply.TextBlock(ApologyText), nil

	default:
		return domain.OutputBlock{}, fmt.Errorf("usecase: unsupported params %T", params)
	}
}

// window folds the fetched history into memory and returns the context the
// chat capability sees. Memory failures fall back to the fetched history.
func (d *Dispatcher) window(ctx context.Context, userID string, history []domain.ConversationTurn) []domain.ConversationTurn {
	memCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if len(history) > 0 {
		if err := d.memory.Merge(memCtx, userID, history); err != nil {
			d.logger.Warn("memory merge failed", zap.String("user_id", userID), zap.Error(domain.Upstream("memory_merge", err)))
			return history
		}
	}
	turns, err := d.memory.AsContext(memCtx, userID)
	if err != nil {
		d.logger.Warn("memory read failed", zap.String("user_id", userID), zap.Error(domain.Upstream("memory_read", err)))
		return history
	}
	return turns
}

func (d *Dispatcher) exchange(u domain.Utterance, answer string) []domain.ConversationTurn {
	asked := u.ReceivedAt
	if asked.IsZero() {
		asked = d.now()
	}
	answered := d.now()
	if answered.Before(asked) {
		answered = asked
	}
	return []domain.ConversationTurn{
		{Role: domain.RoleUser, Text: u.Text, Timestamp: asked},
		{Role: domain.RoleAssistant, Text: answer, Timestamp: answered},
	}
}

func (d *Dispatcher) remember(ctx context.Context, logger *zap.Logger, userID string, turns []domain.ConversationTurn) {
	memCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	for _, t := range turns {
		if err := d.memory.Append(memCtx, userID, t); err != nil {
			logger.Warn("memory append failed", zap.Error(domain.Upstream("memory_append", err)))
			return
		}
	}
}

func emptyText(params domain.ParamSet) string {
	switch p := params.(type) {
	case domain.PhotoParams:
		return fmt.Sprintf(noPhotoTextFmt, p.PhotoDate)
	case domain.ScheduleParams:
		return noScheduleText
	case domain.NewsParams:
		return noNewsText
	default:
		return ApologyText
	}
}
