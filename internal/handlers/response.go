package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
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

// RespondAppError maps sentinel and coded errors onto HTTP statuses. Coded
// upstream failures keep their stable code in the envelope so clients can
// branch on it.
func RespondAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrStageLocked):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrPollTimeout):
		status = http.StatusGatewayTimeout
	case apperr.CodeOf(err) != "":
		status = http.StatusBadGateway
	}
	RespondError(c, status, apperr.CodeOf(err), err)
}
