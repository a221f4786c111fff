// Package ratelimit provides the redis-backed burst limiter that sits in
// front of the daily quota, plus a short-lived lock used to serialize
// concurrent lifecycle transitions per consultation. Both degrade to
// no-ops when redis is not configured.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"

	"github.com/counselhub/counselhub/internal/config"
)

const (
	keyChatUser       = "chat:user:%s"
	keyTransitionLock = "consultation:transition:%s"
)

// ChatLimiter bounds per-user chat bursts and hands out transition locks.
// The daily quota remains the source of truth; this only absorbs spikes.
type ChatLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	chatRate  float64
	chatBurst int
	lockTTL   time.Duration
}

func NewChatLimiter(cfg config.Config) (*ChatLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ChatRate <= 0 || limitCfg.ChatBurst <= 0 {
		return nil, errors.New("chat rate limit must be positive")
	}
	if limitCfg.TransitionLockTTLSeconds <= 0 {
		return nil, errors.New("transition lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ChatLimiter{
		enabled:   true,
		bucket:    NewTokenBucket(client),
		locker:    NewLocker(client),
		chatRate:  limitCfg.ChatRate,
		chatBurst: limitCfg.ChatBurst,
		lockTTL:   time.Duration(limitCfg.TransitionLockTTLSeconds) * time.Second,
	}, nil
}

func (l *ChatLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowChat reports whether the user may send another chat message right
// now. Always true when the limiter is disabled.
func (l *ChatLimiter) AllowChat(ctx context.Context, userID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyChatUser, userID), l.chatRate, l.chatBurst)
}

// TryLockTransition grabs a short lock on the consultation's lifecycle.
// The database row lock remains authoritative; this just fails doomed
// concurrent attempts early.
func (l *ChatLimiter) TryLockTransition(ctx context.Context, requestID snowflake.ID) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyTransitionLock, requestID), l.lockTTL)
}

func (l *ChatLimiter) ReleaseTransition(ctx context.Context, requestID snowflake.ID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyTransitionLock, requestID), token)
}
