package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/providers/pdf"
)

// GetReceipt renders the payment receipt for a released consultation.
func (s *Server) GetReceipt(c *gin.Context) {
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
	if err := s.authorizeView(c, row); err != nil {
		AbortWithError(c, err)
		return
	}
	if row.Status != consultationdomain.StatusReleased {
		AbortWithError(c, consultationdomain.ErrInvalidState)
		return
	}

	order, err := s.ledgerSvc.FindByRequest(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if s.pdfProvider == nil {
		AbortWithError(c, ErrInternal)
		return
	}

	data := pdf.ReceiptData{
		ReceiptNumber: order.ID.String(),
		RequestID:     requestID.String(),
		Summary:       row.Summary,
		Tier:          string(row.Tier),
		PaidAt:        formatReceiptTime(order.ConfirmedAt),
		ReleasedAt:    formatReceiptTime(row.ReleasedAt),
		Currency:      order.Currency,
		Gross:         formatMinorUnits(order.GrossAmount),
		Discount:      formatMinorUnits(order.GrossAmount - order.NetAmount),
		Net:           formatMinorUnits(order.NetAmount),
		PlatformFee:   formatMinorUnits(derefAmount(order.PlatformFee)),
		Payout:        formatMinorUnits(derefAmount(order.Payout)),
	}

	reader, err := s.pdfProvider.GenerateReceipt(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	doc, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", requestID.String()))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func formatReceiptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// formatMinorUnits renders a minor-unit amount with two decimals.
func formatMinorUnits(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func derefAmount(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
