package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/pkg/db/pagination"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = apperror.New(apperror.KindUnauthorized, "unauthorized")
	ErrForbidden    = apperror.New(apperror.KindForbidden, "forbidden")
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error errorBody `json:"error"`
}

// validationError rejects a request before it reaches a service.
type validationError struct {
	field   string
	code    string
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (e *validationError) Is(target error) bool {
	return target == apperror.ErrBadRequest
}

func newValidationError(field, code, message string) error {
	return &validationError{field: field, code: code, message: message}
}

func invalidRequestError() error {
	return newValidationError("", "invalid_request", "invalid request")
}

func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindInvalidPayload, apperror.KindBadRequest:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// AbortWithError renders err as {"error": {...}} with the status of its
// kind. Unclassified errors are logged and hidden behind a generic 500.
func AbortWithError(c *gin.Context, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: errorBody{
			Code:    verr.code,
			Message: verr.message,
			Field:   verr.field,
		}})
		return
	case errors.Is(err, pagination.ErrInvalidPageToken):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: errorBody{
			Code:    pagination.ErrInvalidPageToken.Error(),
			Message: "invalid page token",
			Field:   "page_token",
		}})
		return
	}

	status := statusFor(err)
	body := errorBody{Code: apperror.CodeOf(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		loggerFrom(c).Error("request failed", zap.Error(err))
		body = errorBody{Code: "internal_error", Message: "internal server error"}
	}
	if body.Code == "" {
		body.Code = string(apperror.KindOf(err))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
