package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

const (
	// PrincipalHeader carries the caller identity.
	PrincipalHeader    = "X-Principal"
	AnonymousPrincipal = entities.AnonymousPrincipal

	principalKey = "principal"
)

// Principal stores the caller identity on the context, defaulting to anonymous.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := strings.TrimSpace(c.GetHeader(PrincipalHeader))
		if p == "" {
			p = AnonymousPrincipal
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalOf returns the identity set by Principal.
func PrincipalOf(c *gin.Context) string {
	if p := c.GetString(principalKey); p != "" {
		return p
	}
	if p := strings.TrimSpace(c.GetHeader(PrincipalHeader)); p != "" {
		return p
	}
	return AnonymousPrincipal
}

// StatusOf maps a domain error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, entities.ErrSessionNotFound),
		errors.Is(err, entities.ErrProviderNotFound),
		errors.Is(err, entities.ErrMemoryNotFound),
		errors.Is(err, entities.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrAnonymous):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, entities.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, entities.ErrSessionTerminal):
		return http.StatusConflict
	case errors.Is(err, entities.ErrInvalidInput),
		errors.Is(err, entities.ErrInvalidScore),
		errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNoProvidersConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, entities.ErrAllProvidersFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, op string, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		klog.Errorf("%s: failed: %v", op, err)
	} else {
		klog.V(6).Infof("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, op string, err error) {
	klog.V(6).Infof("%s: invalid request: %v", op, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
