package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type reserveRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (s *Server) ReservePayment(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.consultationSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authzSvc.OwnsRequest(c.Request.Context(), row); err != nil {
		AbortWithError(c, err)
		return
	}

	var req reserveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	result, err := s.escrowSvc.Reserve(c.Request.Context(), requestID, req.Amount, req.Currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": string(result.Request.Status),
		"order": gin.H{
			"id":           result.Order.ID.String(),
			"status":       string(result.Order.Status),
			"gross_amount": result.Order.GrossAmount,
			"net_amount":   result.Order.NetAmount,
			"currency":     result.Order.Currency,
		},
	})
}

func (s *Server) StartSession(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.consultationSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authzSvc.IsAssignedAdvisor(c.Request.Context(), row); err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.escrowSvc.Start(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(updated.Status)})
}

func (s *Server) CompleteSession(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.consultationSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authzSvc.IsAssignedAdvisor(c.Request.Context(), row); err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.escrowSvc.Complete(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(updated.Status)})
}

type releaseRequest struct {
	PlatformFeeBps *int64 `json:"platform_fee_bps"`
}

func (s *Server) ReleasePayment(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req releaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	result, err := s.escrowSvc.Release(c.Request.Context(), requestID, req.PlatformFeeBps)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         string(result.Request.Status),
		"platform_fee":   result.PlatformFee,
		"advisor_payout": result.Payout,
	})
}
