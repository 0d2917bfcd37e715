package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	offerdomain "github.com/smallbiznis/loyalty/internal/offer/domain"
	reportingservice "github.com/smallbiznis/loyalty/internal/reporting/service"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Available *int64            `json:"available,omitempty"`
	Requested *int64            `json:"requested,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	// Insufficient balance carries the exact shortfall to the client.
	var insufficient *loyaltydomain.InsufficientPointsError
	if errors.As(err, &insufficient) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:      "insufficient_points",
			Message:   insufficient.Error(),
			Available: &insufficient.Available,
			Requested: &insufficient.Requested,
		}
	}

	switch {
	case errors.Is(err, loyaltydomain.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_points",
			Message: "insufficient points",
		}
	case errors.Is(err, loyaltydomain.ErrCustomerInactive):
		return http.StatusConflict, errorPayload{
			Type:    "customer_inactive",
			Message: "customer is inactive",
		}
	case errors.Is(err, loyaltydomain.ErrConcurrencyConflict):
		return http.StatusConflict, errorPayload{
			Type:    "concurrency_conflict",
			Message: "conflicting update, retry the request",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case errors.Is(err, reportingservice.ErrInvalidTenant):
		return true
	case isCustomerValidationError(err),
		isTierValidationError(err),
		isLoyaltyValidationError(err),
		isOfferValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, loyaltydomain.ErrCustomerNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, offerdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isCustomerValidationError(err error) bool {
	switch err {
	case customerdomain.ErrInvalidTenant,
		customerdomain.ErrInvalidName,
		customerdomain.ErrInvalidEmail,
		customerdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isTierValidationError(err error) bool {
	switch err {
	case tierdomain.ErrInvalidTenant,
		tierdomain.ErrInvalidTier,
		tierdomain.ErrInvalidMinimum,
		tierdomain.ErrInvalidMultiplier:
		return true
	default:
		return false
	}
}

func isLoyaltyValidationError(err error) bool {
	switch err {
	case loyaltydomain.ErrInvalidTenant,
		loyaltydomain.ErrInvalidID,
		loyaltydomain.ErrInvalidPoints,
		loyaltydomain.ErrInvalidRewardType,
		loyaltydomain.ErrInvalidTransactionType:
		return true
	default:
		return false
	}
}

func isOfferValidationError(err error) bool {
	switch err {
	case offerdomain.ErrInvalidTenant,
		offerdomain.ErrInvalidName,
		offerdomain.ErrInvalidTier,
		offerdomain.ErrInvalidOfferType,
		offerdomain.ErrInvalidWindow,
		offerdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
