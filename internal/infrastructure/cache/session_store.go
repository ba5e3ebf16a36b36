package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/pkg/logger"
)

const lockRetryInterval = 20 * time.Millisecond

// RedisSessionStore keeps sessions as JSON documents in Redis so several
// instances can share them. Writers serialize per session through a SET NX
// lock; the session key expires after the idle TTL.
type RedisSessionStore struct {
	cache       *RedisCache
	ttl         time.Duration
	lockTimeout time.Duration
	lockTTL     time.Duration
	logger      *logger.Logger
}

// NewRedisSessionStore creates a Redis-backed session store.
// lockTimeout bounds how long Update waits for another writer.
func NewRedisSessionStore(c *RedisCache, ttl, lockTimeout time.Duration, log *logger.Logger) *RedisSessionStore {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &RedisSessionStore{
		cache:       c,
		ttl:         ttl,
		lockTimeout: lockTimeout,
		lockTTL:     2 * lockTimeout,
		logger:      log.WithComponent("redis-session-store"),
	}
}

// Get loads a session
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (models.SessionState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return models.SessionState{}, err
	}
	if state == nil {
		return models.SessionState{}, services.ErrSessionNotFound
	}
	return *state, nil
}

// Update applies fn under the session's lock and writes the result back
func (s *RedisSessionStore) Update(ctx context.Context, sessionID string, fn func(*models.SessionState) error) (models.SessionState, error) {
	token, err := s.acquire(ctx, sessionID)
	if err != nil {
		return models.SessionState{}, err
	}
	defer func() {
		// Release even if the request context is gone
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.ReleaseLock(releaseCtx, KeySessionLockPrefix+sessionID, token); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to release session lock")
		}
	}()

	state, err := s.load(ctx, sessionID)
	if err != nil {
		return models.SessionState{}, err
	}
	if state == nil {
		state = models.NewSessionState(sessionID)
	}

	if err := fn(state); err != nil {
		return models.SessionState{}, err
	}
	state.Touch()

	if err := s.cache.SetJSON(ctx, KeySessionPrefix+sessionID, state, s.ttl); err != nil {
		return models.SessionState{}, fmt.Errorf("failed to save session: %w", err)
	}

	return state.Clone(), nil
}

func (s *RedisSessionStore) load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var state models.SessionState
	err := s.cache.GetJSON(ctx, KeySessionPrefix+sessionID, &state)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	// Older documents may lack some sets
	state.Intelligence.Merge(models.ExtractionResult{})
	return &state, nil
}

func (s *RedisSessionStore) acquire(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockTimeout)

	for {
		ok, err := s.cache.SetNX(ctx, KeySessionLockPrefix+sessionID, token, s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", services.ErrSessionLocked
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Close is a no-op; the Redis connection is owned by the caller
func (s *RedisSessionStore) Close() error {
	return nil
}
