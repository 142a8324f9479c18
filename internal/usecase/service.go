package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jarvis-webhook/internal/capability"
	"jarvis-webhook/internal/domain"
)

const DefaultHistoryLimit = 100

// HistoryStore persists the exchanges of every user.
type HistoryStore interface {
	GetHistory(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error)
	SaveTurns(ctx context.Context, userID string, turns ...domain.ConversationTurn) error
}

// Service is the webhook use case: it fetches stored history while the
// utterance is classified, dispatches, and records the answered exchange.
type Service struct {
	dispatcher *Dispatcher
	history    HistoryStore
	limit      int
	timeout    time.Duration
	logger     *zap.Logger
}

func NewService(d *Dispatcher, h HistoryStore, limit int, rt capability.Runtime) (*Service, error) {
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if h == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rt = rt.WithDefaults()
	return &Service{dispatcher: d, history: h, limit: limit, timeout: rt.Timeout, logger: rt.Logger}, nil
}

// Reply always returns an outcome with a valid envelope.
func (s *Service) Reply(ctx context.Context, u domain.Utterance) Outcome {
	logger := s.logger.With(zap.String("user_id", u.UserID))

	var (
		history []domain.ConversationTurn
		intent  domain.Intent
		params  domain.ParamSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, s.timeout)
		defer cancel()
		turns, err := s.history.GetHistory(callCtx, u.UserID, s.limit)
		if err != nil {
			logger.Warn("history fetch failed", zap.Error(domain.Upstream("history_fetch", err)))
			return nil
		}
		history = turns
		return nil
	})
	g.Go(func() error {
		intent, params = s.dispatcher.Classify(gctx, u)
		return nil
	})
	_ = g.Wait()

	out := s.dispatcher.Run(ctx, u, intent, params, history)
	if len(out.Turns) > 0 {
		s.persist(ctx, logger, u.UserID, out.Turns)
	}
	return out
}

// persist outlives a cancelled request so an answered exchange is still
// recorded. Failures are only logged.
func (s *Service) persist(ctx context.Context, logger *zap.Logger, userID string, turns []domain.ConversationTurn) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.history.SaveTurns(callCtx, userID, turns...); err != nil {
		logger.Warn("history write failed", zap.Error(domain.Upstream("history_write", err)))
	}
}
