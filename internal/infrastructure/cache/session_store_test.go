package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/pkg/logger"
)

// newTestCache connects to HONEYPOT_TEST_REDIS_ADDR under a random prefix
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()

	addr := os.Getenv("HONEYPOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HONEYPOT_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	prefix := "honeypot-test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return NewRedisWithClient(client, prefix, logger.NewNop())
}

func TestRedisSessionStoreUpdateAndGet(t *testing.T) {
	c := newTestCache(t)
	store := NewRedisSessionStore(c, time.Minute, time.Second, logger.NewNop())
	ctx := context.Background()

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("Get() on unknown session error = %v, want ErrSessionNotFound", err)
	}

	_, err := store.Update(ctx, "s1", func(s *models.SessionState) error {
		s.MessageCount++
		s.Intelligence.Merge(models.ExtractionResult{UpiIDs: []string{"scam@ybl"}})
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MessageCount != 1 || !got.Intelligence.UpiIDs.Contains("scam@ybl") {
		t.Errorf("stored state = %+v", got)
	}
}

func TestRedisSessionStoreConcurrentUpdates(t *testing.T) {
	c := newTestCache(t)
	store := NewRedisSessionStore(c, time.Minute, 5*time.Second, logger.NewNop())
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Update(ctx, "busy", func(s *models.SessionState) error {
				s.MessageCount++
				return nil
			}); err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "busy")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MessageCount != writers {
		t.Errorf("MessageCount = %d, want %d", got.MessageCount, writers)
	}
}

func TestRedisSessionStoreLockTimeout(t *testing.T) {
	c := newTestCache(t)
	store := NewRedisSessionStore(c, time.Minute, 100*time.Millisecond, logger.NewNop())
	ctx := context.Background()

	ok, err := c.SetNX(ctx, KeySessionLockPrefix+"held", "someone-else", time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetNX() = %v, %v", ok, err)
	}

	_, err = store.Update(ctx, "held", func(*models.SessionState) error { return nil })
	if !errors.Is(err, services.ErrSessionLocked) {
		t.Errorf("Update() error = %v, want ErrSessionLocked", err)
	}
}

func TestRedisCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.IncrCounter(ctx, services.CounterTurns, 1); err != nil {
			t.Fatalf("IncrCounter() error = %v", err)
		}
	}
	if err := c.IncrCounter(ctx, services.CounterReportsSent, 2); err != nil {
		t.Fatalf("IncrCounter() error = %v", err)
	}

	counters, err := c.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if counters[services.CounterTurns] != 3 || counters[services.CounterReportsSent] != 2 {
		t.Errorf("counters = %v", counters)
	}
}

func TestCheckRateLimit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, _, _, err := c.CheckRateLimit(ctx, "client", 2, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit() error = %v", err)
		}
		if want := i <= 2; allowed != want {
			t.Errorf("request %d allowed = %v, want %v", i, allowed, want)
		}
	}
}

type cancelingResponder struct {
	cancel context.CancelFunc
}

func (r cancelingResponder) Respond(context.Context, models.Conversation, models.Channel) (string, models.ExtractionResult) {
	r.cancel()
	return "Which bank sir?", models.ExtractionResult{UpiIDs: []string{"badguy@okaxis"}}
}

func TestRedisSessionStoreRecordsTurnAfterCancel(t *testing.T) {
	c := newTestCache(t)
	log := logger.NewNop()
	store := NewRedisSessionStore(c, time.Minute, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aggregator := services.NewSessionAggregator(store, services.DefaultAggregatorConfig(), log)
	p := services.NewTurnProcessor(services.TurnProcessorDeps{
		Responder:  cancelingResponder{cancel: cancel},
		Aggregator: aggregator,
	}, log)

	if res := p.ProcessTurn(ctx, models.TurnRequest{
		SessionID: "cancelled",
		Message:   models.Message{Sender: "scammer", Text: "urgent pay to badguy@okaxis"},
	}); !res.ScamDetected {
		t.Fatalf("result = %+v", res)
	}

	got, err := store.Get(context.Background(), "cancelled")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.ScamDetected || got.MessageCount != 1 || !got.Intelligence.UpiIDs.Contains("badguy@okaxis") {
		t.Errorf("stored state = %+v", got)
	}
}
