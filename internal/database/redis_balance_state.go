package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/trading"
)

const (
	balanceStateKey = "cryptopump:balance:state"
	balanceStateTTL = 7 * 24 * time.Hour
)

// RedisBalanceStore persists balance snapshots in Redis so a restarted
// process resumes the day's bookkeeping. When Redis is unavailable it falls
// back to an in-memory copy, which survives the process but not a restart.
type RedisBalanceStore struct {
	client         *redis.Client
	redisAvailable atomic.Bool
	log            *logging.Logger

	mu       sync.RWMutex
	fallback *trading.BalanceState
}

var _ trading.BalanceStore = (*RedisBalanceStore)(nil)

// NewRedisBalanceStore creates the store. A nil client means memory-only
// mode.
func NewRedisBalanceStore(client *redis.Client) *RedisBalanceStore {
	s := &RedisBalanceStore{
		client: client,
		log:    logging.WithComponent("balance_store"),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.log.WithError(err).Warn("redis unavailable at startup, balance snapshots are memory-only")
		} else {
			s.redisAvailable.Store(true)
		}
	}
	return s
}

// SaveBalanceState writes the snapshot to Redis and the fallback copy.
func (s *RedisBalanceStore) SaveBalanceState(ctx context.Context, state *trading.BalanceState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil balance state")
	}

	copied := *state
	s.mu.Lock()
	s.fallback = &copied
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal balance state: %w", err)
	}
	if err := s.client.Set(ctx, balanceStateKey, data, balanceStateTTL).Err(); err != nil {
		s.redisAvailable.Store(false)
		return fmt.Errorf("failed to save balance state to redis: %w", err)
	}
	return nil
}

// LoadBalanceState reads the snapshot from Redis, falling back to the
// in-memory copy. Returns nil without error when no snapshot exists.
func (s *RedisBalanceStore) LoadBalanceState(ctx context.Context) (*trading.BalanceState, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, balanceStateKey).Bytes()
		switch {
		case err == redis.Nil:
			return nil, nil
		case err != nil:
			s.redisAvailable.Store(false)
			s.log.WithError(err).Warn("redis read failed, using fallback balance state")
		default:
			var state trading.BalanceState
			if err := json.Unmarshal(data, &state); err != nil {
				return nil, fmt.Errorf("failed to unmarshal balance state: %w", err)
			}
			return &state, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fallback == nil {
		return nil, nil
	}
	copied := *s.fallback
	return &copied, nil
}
