package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
)

type matchRequest struct {
	Specialty           *string `json:"specialty"`
	MinRating           *int64  `json:"min_rating"`
	Language            *string `json:"language"`
	RequireAvailability bool    `json:"require_availability"`
}

func (s *Server) MatchAdvisors(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req matchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	ranked, err := s.matchingSvc.Match(c.Request.Context(), requestID, matchingdomain.Filters{
		Specialty:           req.Specialty,
		MinRating:           req.MinRating,
		Language:            req.Language,
		RequireAvailability: req.RequireAvailability,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	type rankedItem struct {
		AdvisorID string `json:"advisor_id"`
		Score     int64  `json:"score"`
		Rank      int    `json:"rank"`
	}
	items := make([]rankedItem, 0, len(ranked))
	for _, r := range ranked {
		items = append(items, rankedItem{
			AdvisorID: r.AdvisorID.String(),
			Score:     r.Score,
			Rank:      r.Rank,
		})
	}
	c.JSON(http.StatusOK, gin.H{"advisors": items})
}

type respondRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) RespondToAssignment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	assignmentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision := matchingdomain.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	result, err := s.matchingSvc.Respond(c.Request.Context(), assignmentID, actor.ID, decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": result.RequestID.String(),
		"status":     string(result.Status),
		"assignment": gin.H{
			"id":     result.Assignment.ID.String(),
			"status": string(result.Assignment.Status),
			"rank":   result.Assignment.Rank,
		},
	})
}
