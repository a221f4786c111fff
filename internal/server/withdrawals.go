package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/counselhub/counselhub/internal/actorctx"
	withdrawaldomain "github.com/counselhub/counselhub/internal/withdrawal/domain"
)

type requestWithdrawalRequest struct {
	Amount      int64          `json:"amount"`
	BankDetails map[string]any `json:"bank_details"`
}

type withdrawalResponse struct {
	ID        string  `json:"id"`
	AdvisorID string  `json:"advisor_id"`
	Amount    int64   `json:"amount"`
	Status    string  `json:"status"`
	DecidedBy *string `json:"decided_by,omitempty"`
	Reason    *string `json:"decision_reason,omitempty"`
}

func toWithdrawalResponse(row *withdrawaldomain.WithdrawalRequest) withdrawalResponse {
	resp := withdrawalResponse{
		ID:        row.ID.String(),
		AdvisorID: row.AdvisorID.String(),
		Amount:    row.Amount,
		Status:    string(row.Status),
		Reason:    row.DecisionReason,
	}
	if row.DecidedBy != nil {
		decidedBy := row.DecidedBy.String()
		resp.DecidedBy = &decidedBy
	}
	return resp
}

func (s *Server) RequestWithdrawal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req requestWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	row, err := s.withdrawalSvc.Request(c.Request.Context(), actor.ID, req.Amount, req.BankDetails)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toWithdrawalResponse(row))
}

func (s *Server) GetWithdrawal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.withdrawalSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if actor.Role != actorctx.RoleAdmin && row.AdvisorID != actor.ID {
		AbortWithError(c, withdrawaldomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, toWithdrawalResponse(row))
}

func (s *Server) ListWithdrawals(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rows, err := s.withdrawalSvc.ListByAdvisor(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]withdrawalResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toWithdrawalResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": items})
}

func (s *Server) GetBalance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	balance, err := s.withdrawalSvc.Balance(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) ApproveWithdrawal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.withdrawalSvc.Approve(c.Request.Context(), id, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWithdrawalResponse(row))
}

type rejectWithdrawalRequest struct {
	Reason *string `json:"reason"`
}

func (s *Server) RejectWithdrawal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req rejectWithdrawalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	row, err := s.withdrawalSvc.Reject(c.Request.Context(), id, actor.ID, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWithdrawalResponse(row))
}

func (s *Server) ProcessWithdrawal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.withdrawalSvc.MarkProcessing(c.Request.Context(), id, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWithdrawalResponse(row))
}

func (s *Server) CompleteWithdrawal(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.withdrawalSvc.Complete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWithdrawalResponse(row))
}
