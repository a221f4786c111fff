package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
)

type enforceUsageRequest struct {
	Tier   string `json:"tier"`
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}

func (s *Server) EnforceUsage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req enforceUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	tier, action, err := parseUsageParams(req.Tier, req.Action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Burst limiting runs ahead of the daily quota for chat actions.
	if s.chatLimiter.Enabled() {
		burst, err := s.chatLimiter.AllowChat(c.Request.Context(), actor.ID)
		if err == nil && !burst.Allowed {
			c.Header("Retry-After", burst.RetryAfter.String())
			AbortWithError(c, ErrTooManyRequest)
			return
		}
	}

	decision, err := s.quotaSvc.Enforce(c.Request.Context(), actor.ID, tier, action, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decisionPayload(decision))
}

func (s *Server) PeekUsage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	tier, action, err := parseUsageParams(c.Query("tier"), c.Query("action"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.quotaSvc.Peek(c.Request.Context(), actor.ID, tier, action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decisionPayload(decision))
}

func parseUsageParams(rawTier, rawAction string) (tierdomain.Tier, quotadomain.Action, error) {
	tier := tierdomain.Tier(strings.ToLower(strings.TrimSpace(rawTier)))
	if tier == "" {
		tier = tierdomain.TierFree
	}
	if !tier.Valid() {
		return "", "", tierdomain.ErrInvalidTier
	}
	action := quotadomain.Action(strings.ToLower(strings.TrimSpace(rawAction)))
	if !action.Valid() {
		return "", "", quotadomain.ErrInvalidAction
	}
	return tier, action, nil
}

func decisionPayload(decision quotadomain.Decision) gin.H {
	payload := gin.H{
		"allowed": decision.Allowed,
		"used":    decision.Used,
	}
	if decision.Limit != nil {
		payload["limit"] = *decision.Limit
		payload["remaining"] = decision.Remaining
	}
	return payload
}
