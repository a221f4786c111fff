package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/authorization"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	escrowdomain "github.com/counselhub/counselhub/internal/escrow/domain"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	withdrawaldomain "github.com/counselhub/counselhub/internal/withdrawal/domain"
)

type errorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrTooManyRequest = errors.New("too_many_requests")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var quotaErr *quotadomain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "quota_exceeded",
			Message: "daily quota exceeded",
			Detail: map[string]any{
				"action":    string(quotaErr.Action),
				"limit":     quotaErr.Limit,
				"used":      quotaErr.Used,
				"remaining": quotaErr.Remaining(),
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTooManyRequest):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, withdrawaldomain.ErrNotImplemented):
		return http.StatusNotImplemented, errorPayload{
			Type:    "not_implemented",
			Message: "payout gateway integration pending",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, consultationdomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, consultationdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, withdrawaldomain.ErrNotFound),
		errors.Is(err, matchingdomain.ErrAssignmentNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// Conflict errors describe operations that are structurally fine but
// illegal for the current state. They carry their code in the message so
// the caller can react.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, consultationdomain.ErrInvalidTransition),
		errors.Is(err, consultationdomain.ErrInvalidState),
		errors.Is(err, consultationdomain.ErrAlreadyRated),
		errors.Is(err, matchingdomain.ErrAlreadyResponded),
		errors.Is(err, escrowdomain.ErrPaymentNotConfirmed),
		errors.Is(err, ledgerdomain.ErrInvalidOrderState),
		errors.Is(err, ledgerdomain.ErrAlreadySettled),
		errors.Is(err, ledgerdomain.ErrGatewayRefMismatch),
		errors.Is(err, withdrawaldomain.ErrInvalidStatus),
		errors.Is(err, withdrawaldomain.ErrInsufficientBalance):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, consultationdomain.ErrInvalidSummary),
		errors.Is(err, consultationdomain.ErrInvalidAmount),
		errors.Is(err, consultationdomain.ErrInvalidRating),
		errors.Is(err, consultationdomain.ErrInvalidPageToken),
		errors.Is(err, quotadomain.ErrInvalidAction),
		errors.Is(err, quotadomain.ErrInvalidAmount),
		errors.Is(err, matchingdomain.ErrInvalidDecision),
		errors.Is(err, escrowdomain.ErrInvalidFee),
		errors.Is(err, escrowdomain.ErrOrderMissing),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidCurrency),
		errors.Is(err, ledgerdomain.ErrInvalidGatewayRef),
		errors.Is(err, ledgerdomain.ErrSentinelPayer),
		errors.Is(err, withdrawaldomain.ErrInvalidAmount),
		errors.Is(err, tierdomain.ErrInvalidTier),
		errors.Is(err, tierdomain.ErrInvalidDiscount),
		errors.Is(err, tierdomain.ErrInvalidPriority),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

// classifyErrorForLog labels errors for the request log without treating
// expected domain outcomes as failures.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "infrastructure", payload.Type
	default:
		return "domain", payload.Type
	}
}
