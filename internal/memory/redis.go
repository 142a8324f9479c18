package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
)

const (
	redisKeyPrefix  = "memory:"
	DefaultRedisTTL = 24 * time.Hour
)

// redisAPI is the subset of go-redis commands RedisStore uses.
// *redis.Client satisfies it.
type redisAPI interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStore keeps each user's window in a sorted set scored by turn time,
// so every warm instance sees the same memory. Identical turns encode to the
// same member, which makes Merge idempotent.
type RedisStore struct {
	api    redisAPI
	max    int
	ttl    time.Duration
	locks  users[struct{}]
	logger *zap.Logger
}

func NewRedisStore(api redisAPI, max int, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if api == nil {
		return nil, errors.New("memory: redis client must not be nil")
	}
	if max <= 0 {
		max = DefaultWindow
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{api: api, max: max, ttl: ttl, locks: newUsers[struct{}](ttl), logger: logger}, nil
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (s *RedisStore) Append(ctx context.Context, userID string, turn domain.ConversationTurn) error {
	return s.add(ctx, userID, []domain.ConversationTurn{turn})
}

func (s *RedisStore) Merge(ctx context.Context, userID string, history []domain.ConversationTurn) error {
	valid := make([]domain.ConversationTurn, 0, len(history))
	for _, t := range history {
		if t.Role.Valid() {
			valid = append(valid, t)
		}
	}
	return s.add(ctx, userID, valid)
}

func (s *RedisStore) add(ctx context.Context, userID string, turns []domain.ConversationTurn) error {
	if strings.TrimSpace(userID) == "" || len(turns) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(turns))
	for _, t := range turns {
		raw, err := encodeTurn(t)
		if err != nil {
			return fmt.Errorf("memory: encode turn: %w", err)
		}
		members = append(members, redis.Z{Score: float64(t.Timestamp.UnixMilli()), Member: raw})
	}

	e := s.locks.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	key := redisKey(userID)
	if err := s.api.ZAdd(ctx, key, members...).Err(); err != nil {
		return domain.Upstream("redis_zadd", err)
	}
	// Keep the newest max members; rank 0 is the oldest.
	if err := s.api.ZRemRangeByRank(ctx, key, 0, int64(-s.max-1)).Err(); err != nil {
		return domain.Upstream("redis_trim", err)
	}
	if err := s.api.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Warn("memory: failed to refresh ttl", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *RedisStore) AsContext(ctx context.Context, userID string) ([]domain.ConversationTurn, error) {
	raw, err := s.api.ZRange(ctx, redisKey(userID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, domain.Upstream("redis_zrange", err)
	}
	turns := make([]domain.ConversationTurn, 0, len(raw))
	for _, member := range raw {
		t, err := decodeTurn(member)
		if err != nil {
			s.logger.Warn("memory: skipping undecodable turn", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		turns = append(turns, t)
	}
	// Scores are millisecond precision; restore exact order.
	sortTurns(turns)
	return turns, nil
}

func encodeTurn(t domain.ConversationTurn) (string, error) {
	t.Timestamp = t.Timestamp.UTC()
	raw, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTurn(member string) (domain.ConversationTurn, error) {
	var t domain.ConversationTurn
	if err := json.Unmarshal([]byte(member), &t); err != nil {
		return domain.ConversationTurn{}, err
	}
	if !t.Role.Valid() {
		return domain.ConversationTurn{}, fmt.Errorf("unknown role %q", t.Role)
	}
	return t, nil
}
