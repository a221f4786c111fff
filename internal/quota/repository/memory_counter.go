package repository

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
)

type memoryKey struct {
	userID snowflake.ID
	day    string
	action quotadomain.Action
}

// memoryCounter keeps usage in process memory. It exists for tests and
// for running without a database; counts reset on restart.
type memoryCounter struct {
	mu    sync.Mutex
	usage map[memoryKey]int64
}

func NewMemoryCounter() quotadomain.Counter {
	return &memoryCounter{usage: make(map[memoryKey]int64)}
}

func (c *memoryCounter) IncrementIfAllowed(_ context.Context, userID snowflake.ID, day string, action quotadomain.Action, amount int64, limit *int64) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := memoryKey{userID: userID, day: day, action: action}
	used := c.usage[key]
	if limit != nil && used+amount > *limit {
		return false, used, nil
	}
	c.usage[key] = used + amount
	return true, used + amount, nil
}

func (c *memoryCounter) Current(_ context.Context, userID snowflake.ID, day string, action quotadomain.Action) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage[memoryKey{userID: userID, day: day, action: action}], nil
}
