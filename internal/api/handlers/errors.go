package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// respondError 서비스 에러를 HTTP 상태로 변환
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUnknownTimer):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrTeamFull),
		errors.Is(err, service.ErrMatchFull),
		errors.Is(err, service.ErrStateConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrMatchBusy):
		status, message = http.StatusLocked, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Request timed out"
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": message})
}
