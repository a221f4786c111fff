package ratelimit

import "go.uber.org/fx"

var Module = fx.Module("rate.limit",
	fx.Provide(NewChatLimiter),
	fx.Provide(provideLocker),
)

// provideLocker shares the limiter's redis lock with background jobs.
// Nil when redis is not configured.
func provideLocker(limiter *ChatLimiter) *Locker {
	if !limiter.Enabled() {
		return nil
	}
	return limiter.locker
}
