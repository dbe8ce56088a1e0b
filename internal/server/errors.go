package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	tenantdomain "github.com/smallbiznis/branchledger/internal/tenant/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware maps domain errors pushed onto the gin context
// into one JSON error shape.
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
	switch {
	case errors.Is(err, tenantdomain.ErrUnknownBranch):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "unknown branch",
		}
	case errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "transaction already recorded",
		}
	case errors.Is(err, ledgerdomain.ErrUnknownProduct):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "validation_error",
			Message: "unknown product",
		}
	case errors.Is(err, ledgerdomain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "validation_error",
			Message: "insufficient stock",
		}
	case errors.Is(err, ledgerdomain.ErrInvalidTotals),
		errors.Is(err, ledgerdomain.ErrInvalidPayment),
		errors.Is(err, ledgerdomain.ErrInvalidQuantity):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ledgerdomain.ErrCommitFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "commit_failed",
			Message: "sale was not recorded",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog tags request log lines so a spike of one error
// class is visible without reading bodies.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, tenantdomain.ErrUnknownBranch):
		return "not_found", "unknown_branch"
	case errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		return "conflict", "duplicate_transaction"
	case errors.Is(err, ledgerdomain.ErrUnknownProduct):
		return "validation", "unknown_product"
	case errors.Is(err, ledgerdomain.ErrInsufficientStock):
		return "validation", "insufficient_stock"
	case errors.Is(err, ledgerdomain.ErrCommitFailed):
		return "internal", "commit_failed"
	default:
		return "internal", "internal"
	}
}
