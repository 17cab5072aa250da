package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/revspine/reconciler/internal/identity/domain"
	sessiondomain "github.com/revspine/reconciler/internal/session/domain"
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
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: field, Code: code, Message: message},
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

	switch {
	case errors.Is(err, sessiondomain.ErrSessionNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "session not found",
		}
	case errors.Is(err, sessiondomain.ErrUnknownSetting):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "unknown setting",
		}
	case errors.Is(err, sessiondomain.ErrInvalidPeriod):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid period",
		}
	case errors.Is(err, sessiondomain.ErrAnalysisRunning):
		return http.StatusConflict, errorPayload{
			Type:    "analysis_in_progress",
			Message: "analysis already in progress",
		}
	case errors.Is(err, identitydomain.ErrReviewPending):
		return http.StatusConflict, errorPayload{
			Type:    "identity_review_required",
			Message: "unresolved identity matches must be decided before analyze",
		}
	case errors.Is(err, identitydomain.ErrNoDecisions):
		return http.StatusConflict, errorPayload{
			Type:    "no_decisions",
			Message: "no decisions to undo",
		}
	case errors.Is(err, identitydomain.ErrUnknownMatch):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "unknown match_id",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := ""
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
