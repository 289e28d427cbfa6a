// Package middleware provides the gin middleware shared by the case generator's HTTP API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
)

// RequestIDHeader carries the correlation ID of a request.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key holding the correlation ID.
const RequestIDKey = "request_id"

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		// Enforce HTTPS (only in production)
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// CorrelationID tags each request with an ID, reusing the caller's when present.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// RequestID returns the correlation ID assigned by CorrelationID.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestLogger logs one structured entry per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"request_id":  RequestID(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"bytes":       c.Writer.Size(),
		}
		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}

// BasicAuth guards generation endpoints. An empty password disables the check, which
// config validation only permits outside production.
func BasicAuth(cfg domain.AuthConfig, logger *logrus.Logger) gin.HandlerFunc {
	if cfg.Password == "" {
		logger.Warn("No auth password configured; generation endpoints are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
		if !ok || !userMatch || !passMatch {
			logger.WithFields(logrus.Fields{
				"request_id": RequestID(c),
				"path":       c.Request.URL.Path,
				"client_ip":  c.ClientIP(),
			}).Warn("Rejected unauthenticated request")

			c.Header("WWW-Authenticate", `Basic realm="medcase-generator"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, domain.NewAPIError(
				domain.ErrAuthentication, "Incorrect username or password", nil, RequestID(c)))
			return
		}
		c.Next()
	}
}
