package handlers

import (
	"context"
	"net/http"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// UserIDHeader names the caller for activity attribution
const UserIDHeader = "X-User-ID"

// Response is the envelope of every API answer
type Response struct {
	Code    int         `json:"code"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidArgument:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindExhaustedRetries:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := StatusFor(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("path", c.FullPath()).Int("status", status).Msg("Request failed")

	c.JSON(status, Response{
		Code:    status,
		Error:   kind.Code(),
		Message: apperrors.PublicMessage(err),
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.InvalidArgument("malformed request body: %v", err))
}

// requestContext carries the caller id from the request headers
func requestContext(c *gin.Context) context.Context {
	return services.WithActor(c.Request.Context(), c.GetHeader(UserIDHeader))
}
