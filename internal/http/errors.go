package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/apperr"
)

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindCapacityExceeded, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {"error","kind","code","field"} and aborts c.
// Untyped errors are logged and reported as internal.
func WriteError(c *gin.Context, err error) {
	if typed, ok := apperr.As(err); ok {
		body := gin.H{"error": typed.Reason, "kind": typed.Kind, "code": typed.Code}
		if typed.Field != "" {
			body["field"] = typed.Field
		}
		status := StatusForKind(typed.Kind)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out", "kind": apperr.KindInternal, "code": "timeout"})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": apperr.KindInternal, "code": "internal"})
	}
}
