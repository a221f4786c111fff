package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/counselhub/counselhub/internal/actorctx"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
)

type createConsultationRequest struct {
	Tier        string   `json:"tier"`
	Summary     string   `json:"summary"`
	Attachments []string `json:"attachments"`
	GrossAmount *int64   `json:"gross_amount"`
	Currency    *string  `json:"currency"`
}

type consultationResponse struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	Tier            string  `json:"tier"`
	PriorityWeight  int64   `json:"priority_weight"`
	DiscountRateBps int64   `json:"discount_rate_bps"`
	GrossAmount     *int64  `json:"gross_amount,omitempty"`
	DiscountAmount  *int64  `json:"discount_amount,omitempty"`
	NetAmount       *int64  `json:"net_amount,omitempty"`
	AdvisorID       *string `json:"advisor_id,omitempty"`
	RatingScore     *int64  `json:"rating_score,omitempty"`
}

func toConsultationResponse(row *consultationdomain.ConsultationRequest) consultationResponse {
	resp := consultationResponse{
		ID:              row.ID.String(),
		Status:          string(row.Status),
		Tier:            string(row.Tier),
		PriorityWeight:  row.PriorityWeight,
		DiscountRateBps: row.DiscountRateBps,
		GrossAmount:     row.GrossAmount,
		DiscountAmount:  row.DiscountAmount,
		NetAmount:       row.NetAmount,
		RatingScore:     row.RatingScore,
	}
	if row.AdvisorID != nil {
		advisorID := row.AdvisorID.String()
		resp.AdvisorID = &advisorID
	}
	return resp
}

func (s *Server) CreateConsultation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tier := tierdomain.Tier(strings.ToLower(strings.TrimSpace(req.Tier)))
	if tier == "" {
		tier = tierdomain.TierFree
	}
	if !tier.Valid() {
		AbortWithError(c, tierdomain.ErrInvalidTier)
		return
	}

	row, err := s.consultationSvc.Create(c.Request.Context(), consultationdomain.CreateRequest{
		RequesterID: actor.ID,
		Tier:        tier,
		Summary:     req.Summary,
		Attachments: req.Attachments,
		GrossAmount: req.GrossAmount,
		Currency:    req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toConsultationResponse(row))
}

func (s *Server) GetConsultation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.consultationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorizeView(c, row); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConsultationResponse(row))
}

func (s *Server) ListConsultations(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter := consultationdomain.ListFilter{
		PageToken: c.Query("page_token"),
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.PageSize = size
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := consultationdomain.Status(raw)
		if !status.Valid() {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.Status = &status
	}

	switch actor.Role {
	case actorctx.RoleAdvisor:
		filter.AdvisorID = &actor.ID
	case actorctx.RoleAdmin:
	default:
		filter.RequesterID = &actor.ID
	}

	result, err := s.consultationSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]consultationResponse, 0, len(result.Requests))
	for _, row := range result.Requests {
		items = append(items, toConsultationResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"consultations":   items,
		"next_page_token": result.NextPageToken,
	})
}

func (s *Server) CancelConsultation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.consultationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authzSvc.OwnsRequest(c.Request.Context(), row); err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.escrowSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConsultationResponse(updated))
}

type rateConsultationRequest struct {
	Stars int64 `json:"stars"`
}

func (s *Server) RateConsultation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req rateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	row, err := s.consultationSvc.Rate(c.Request.Context(), id, req.Stars)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConsultationResponse(row))
}

// authorizeView lets requesters, the assigned advisor and admins read a
// consultation.
func (s *Server) authorizeView(c *gin.Context, row *consultationdomain.ConsultationRequest) error {
	ctx := c.Request.Context()
	if err := s.authzSvc.OwnsRequest(ctx, row); err == nil {
		return nil
	}
	return s.authzSvc.IsAssignedAdvisor(ctx, row)
}
