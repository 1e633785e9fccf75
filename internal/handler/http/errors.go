package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/service"
)

// HandleServiceError 将 Service 层的业务错误映射为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnauthenticated) {
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	} else if errors.Is(err, service.ErrRoomNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
	} else if errors.Is(err, service.ErrInvalidPayload) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else if errors.Is(err, service.ErrStoreUnavailable) {
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	} else {
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
