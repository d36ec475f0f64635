package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health answers the liveness probe. recognizer may be nil.
func Health(service string, recognizer func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok", "service": service}
		if recognizer != nil {
			body["recognizer"] = recognizer()
		}
		c.JSON(http.StatusOK, body)
	}
}

// Ready answers the readiness probe: 200 when check passes, otherwise 503
// with the failure. A nil check is always ready.
func Ready(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
