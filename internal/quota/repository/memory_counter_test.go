package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"

	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	"github.com/counselhub/counselhub/internal/quota/repository"
)

func TestMemoryCounterConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	counter := repository.NewMemoryCounter()
	userID := snowflake.ID(42)
	limit := int64(10)

	var applied int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := counter.IncrementIfAllowed(ctx, userID, "2026-03-14", quotadomain.ActionGeneralChat, 1, &limit)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&applied, 1)
			}
		}()
	}
	wg.Wait()

	if applied != limit {
		t.Fatalf("applied = %d, want exactly %d", applied, limit)
	}
	used, err := counter.Current(ctx, userID, "2026-03-14", quotadomain.ActionGeneralChat)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if used != limit {
		t.Fatalf("used = %d, want %d", used, limit)
	}
}

func TestMemoryCounterIsolatesDaysAndActions(t *testing.T) {
	ctx := context.Background()
	counter := repository.NewMemoryCounter()
	userID := snowflake.ID(7)
	limit := int64(3)

	for i := 0; i < 3; i++ {
		ok, _, err := counter.IncrementIfAllowed(ctx, userID, "2026-03-14", quotadomain.ActionGeneralChat, 1, &limit)
		if err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, used, _ := counter.IncrementIfAllowed(ctx, userID, "2026-03-14", quotadomain.ActionGeneralChat, 1, &limit); ok || used != 3 {
		t.Fatalf("over limit: ok=%v used=%d", ok, used)
	}

	// a different action family on the same day is unaffected
	if ok, used, err := counter.IncrementIfAllowed(ctx, userID, "2026-03-14", quotadomain.ActionAdvisorChat, 1, &limit); err != nil || !ok || used != 1 {
		t.Fatalf("advisor chat: ok=%v used=%d err=%v", ok, used, err)
	}
	// the next day starts fresh
	if ok, used, err := counter.IncrementIfAllowed(ctx, userID, "2026-03-15", quotadomain.ActionGeneralChat, 1, &limit); err != nil || !ok || used != 1 {
		t.Fatalf("next day: ok=%v used=%d err=%v", ok, used, err)
	}
}

func TestMemoryCounterNilLimitNeverDenies(t *testing.T) {
	ctx := context.Background()
	counter := repository.NewMemoryCounter()

	for i := 0; i < 1000; i++ {
		ok, _, err := counter.IncrementIfAllowed(ctx, snowflake.ID(1), "2026-03-14", quotadomain.ActionGeneralChat, 1, nil)
		if err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	used, err := counter.Current(ctx, snowflake.ID(1), "2026-03-14", quotadomain.ActionGeneralChat)
	if err != nil || used != 1000 {
		t.Fatalf("used = %d err=%v", used, err)
	}
}
