package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
)

func (s *Server) ListTiers(c *gin.Context) {
	tiers, err := s.tierSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

type updateTierRequest struct {
	GeneralChatDaily *int64 `json:"general_chat_daily"`
	AdvisorChatDaily *int64 `json:"advisor_chat_daily"`
	ContractAccess   bool   `json:"contract_access"`
	DiscountRateBps  int64  `json:"discount_rate_bps"`
	PriorityWeight   int64  `json:"priority_weight"`
}

func (s *Server) UpdateTier(c *gin.Context) {
	tier := tierdomain.Tier(strings.ToLower(strings.TrimSpace(c.Param("tier"))))
	if !tier.Valid() {
		AbortWithError(c, tierdomain.ErrInvalidTier)
		return
	}

	var req updateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	updated, err := s.tierSvc.Update(c.Request.Context(), tierdomain.UpdateTierLimitRequest{
		Tier:             tier,
		GeneralChatDaily: req.GeneralChatDaily,
		AdvisorChatDaily: req.AdvisorChatDaily,
		ContractAccess:   req.ContractAccess,
		DiscountRateBps:  req.DiscountRateBps,
		PriorityWeight:   req.PriorityWeight,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
