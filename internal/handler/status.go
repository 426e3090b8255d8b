package handler

import (
	"errors"
	"net/http"

	linkup_errors "linkup-chat/pkg/errors"
	"linkup-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// respondError translates a service error into an HTTP status and error code.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, linkup_errors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, linkup_errors.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, linkup_errors.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, linkup_errors.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, linkup_errors.ErrConflict), errors.Is(err, linkup_errors.ErrAlreadyExists):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, linkup_errors.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
}
