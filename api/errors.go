package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookingflow/auth"
	"bookingflow/lifecycle"
)

// statusFor maps a service error to an HTTP status and a message safe to
// show the caller.
func statusFor(err error) (int, string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrRole), errors.Is(err, auth.ErrInactive):
		status = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrValidation), errors.Is(err, lifecycle.ErrPastDue), errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrConflict), errors.Is(err, lifecycle.ErrState),
		errors.Is(err, lifecycle.ErrCancelWindow), errors.Is(err, auth.ErrDuplicateEmail):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	}

	if msg := lifecycle.UserMessage(err); msg != "" {
		return status, msg
	}
	if status == http.StatusInternalServerError {
		return status, "internal error"
	}
	return status, err.Error()
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
