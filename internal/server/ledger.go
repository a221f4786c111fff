package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AnonymizePayer re-points a deleted account's ledger entries to the
// reserved sentinel payer. The entries themselves stay untouched.
func (s *Server) AnonymizePayer(c *gin.Context) {
	payerID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	moved, err := s.ledgerSvc.AnonymizePayer(c.Request.Context(), payerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders_moved": moved})
}
