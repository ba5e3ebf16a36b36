package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

var (
	// ErrSessionLocked is returned when a session stays locked by another writer
	ErrSessionLocked = errors.New("session is locked by another writer")
	// ErrSessionNotFound is returned by lookups for unknown sessions
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists session state. Update applies fn to the session,
// creating it first if needed, under mutual exclusion for that session only.
// The returned state is a copy taken after fn ran.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (models.SessionState, error)
	Update(ctx context.Context, sessionID string, fn func(*models.SessionState) error) (models.SessionState, error)
	Close() error
}

type memoryEntry struct {
	mu      sync.Mutex
	state   *models.SessionState
	evicted bool
}

// MemorySessionStore keeps sessions in process memory with idle-TTL eviction
type MemorySessionStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	logger  *logger.Logger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemorySessionStore creates an in-memory store. A ttl of zero disables eviction.
func NewMemorySessionStore(ttl time.Duration, log *logger.Logger) *MemorySessionStore {
	s := &MemorySessionStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		logger:  log.WithComponent("session-store"),
		stopCh:  make(chan struct{}),
	}

	if ttl > 0 {
		interval := ttl / 2
		if interval < time.Second {
			interval = time.Second
		}
		s.wg.Add(1)
		go s.janitor(interval)
	}

	return s
}

// Get returns a copy of the session
func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (models.SessionState, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return models.SessionState{}, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return models.SessionState{}, ErrSessionNotFound
	}
	return entry.state.Clone(), nil
}

// Update mutates one session under its own lock. Other sessions are not blocked.
func (s *MemorySessionStore) Update(ctx context.Context, sessionID string, fn func(*models.SessionState) error) (models.SessionState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.SessionState{}, err
		}

		entry := s.entry(sessionID)

		entry.mu.Lock()
		if entry.evicted {
			// lost a race with the janitor, retry on a fresh entry
			entry.mu.Unlock()
			continue
		}

		if err := fn(entry.state); err != nil {
			entry.mu.Unlock()
			return models.SessionState{}, err
		}
		entry.state.Touch()
		snapshot := entry.state.Clone()
		entry.mu.Unlock()

		return snapshot, nil
	}
}

func (s *MemorySessionStore) entry(sessionID string) *memoryEntry {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.entries[sessionID]; ok {
		return entry
	}
	entry = &memoryEntry{state: models.NewSessionState(sessionID)}
	s.entries[sessionID] = entry
	return entry
}

// Len returns the number of live sessions
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EvictIdle removes sessions idle for longer than the TTL and returns how many were removed
func (s *MemorySessionStore) EvictIdle(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.entries {
		if !entry.mu.TryLock() {
			continue
		}
		if now.Sub(entry.state.UpdatedAt) > s.ttl {
			entry.evicted = true
			delete(s.entries, id)
			evicted++
		}
		entry.mu.Unlock()
	}
	return evicted
}

func (s *MemorySessionStore) janitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			if n := s.EvictIdle(now); n > 0 {
				s.logger.Debug().Int("evicted", n).Msg("evicted idle sessions")
			}
		}
	}
}

// Close stops the eviction loop
func (s *MemorySessionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}
