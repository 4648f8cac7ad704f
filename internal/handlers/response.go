package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusForError maps domain errors onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrQuotaExhausted):
		return http.StatusTooManyRequests, "quota_exhausted"
	}

	var transient *apperrors.ProviderTransientError
	if errors.As(err, &transient) {
		return http.StatusBadGateway, "provider_unavailable"
	}
	var fatal *apperrors.ProviderFatalError
	if errors.As(err, &fatal) {
		if fatal.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, "target_not_found"
		}
		return http.StatusBadGateway, "provider_rejected"
	}
	var persistence *apperrors.PersistenceError
	if errors.As(err, &persistence) {
		return http.StatusInternalServerError, "persistence_failure"
	}
	return http.StatusInternalServerError, "internal_error"
}
