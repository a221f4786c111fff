// Package actorctx carries the acting identity and request correlation
// fields through a request context.
package actorctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleUser    = "user"
	RoleAdvisor = "advisor"
	RoleAdmin   = "admin"
)

type actorKey struct{}
type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}

// Actor identifies the authenticated caller for a request.
type Actor struct {
	ID   snowflake.ID
	Role string
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == 0 {
		return Actor{}, false
	}
	return actor, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithClientInfo(ctx context.Context, ipAddress, userAgent string) context.Context {
	if ip := strings.TrimSpace(ipAddress); ip != "" {
		ctx = context.WithValue(ctx, ipAddressKey{}, ip)
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		ctx = context.WithValue(ctx, userAgentKey{}, ua)
	}
	return ctx
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ipAddressKey{}).(string); ok {
		return v
	}
	return ""
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}
