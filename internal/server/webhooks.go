package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// paymentWebhookPayload is the confirmation event shape providers post.
// Only the order reference and the gateway's own reference matter; the
// engine never fabricates confirmations.
type paymentWebhookPayload struct {
	OrderID    string `json:"order_id"`
	GatewayRef string `json:"gateway_ref"`
	EventType  string `json:"event_type"`
}

func (s *Server) PaymentWebhook(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if provider == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var payload paymentWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	orderID, err := snowflake.ParseString(strings.TrimSpace(payload.OrderID))
	if err != nil || orderID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.ledgerSvc.ConfirmGateway(c.Request.Context(), provider, orderID, payload.GatewayRef)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID.String(),
		"status":   string(order.Status),
	})
}
