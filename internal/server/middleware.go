package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/counselhub/counselhub/internal/actorctx"
)

// Identity arrives on trusted headers set by the fronting auth proxy.
// Session issuance itself is an external collaborator.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// ClientContext records the caller's network identity for audit rows.
func ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := actorctx.WithClientInfo(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorRequired resolves the acting identity from the trusted headers and
// rejects requests without one.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if rawID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		actorID, err := snowflake.ParseString(rawID)
		if err != nil || actorID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		switch role {
		case actorctx.RoleUser, actorctx.RoleAdvisor, actorctx.RoleAdmin:
		case "":
			role = actorctx.RoleUser
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorctx.WithActor(c.Request.Context(), actorctx.Actor{ID: actorID, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireCapability runs the shared authorize step for the capability the
// route declares.
func (s *Server) RequireCapability(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) (actorctx.Actor, bool) {
	return actorctx.ActorFromContext(c.Request.Context())
}
