package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKeyCtx    contextKey = "logger"
	requestIDKeyCtx contextKey = "request_id"
)

const identityGinKey = "identity"

// RequestLogger generates a unique request id and injects a request-scoped
// logger, the same shape as the teacher's original middleware.
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()

		logger := slog.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remote_addr", c.ClientIP(),
		)

		ctx := context.WithValue(c.Request.Context(), loggerKeyCtx, logger)
		ctx = context.WithValue(ctx, requestIDKeyCtx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.Info("request completed",
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (h *Handler) getLogger(c *gin.Context) *slog.Logger {
	if logger, ok := c.Request.Context().Value(loggerKeyCtx).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// AuthMiddleware implements spec.md §4.M's two authentication modes:
// Authorization: Bearer <token>, or a session cookie. Missing/invalid
// credentials abort the request with 401 UNAUTHORIZED.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := h.getLogger(c)

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			identity, err := h.authGate.AuthenticateBearer(token)
			if err == nil {
				c.Set(identityGinKey, identity)
				c.Next()
				return
			}
			logger.Warn("bearer authentication failed", "error", err)
		}

		if cookie, err := c.Cookie("session_id"); err == nil && cookie != "" {
			identity, err := h.authGate.AuthenticateSession(cookie)
			if err == nil {
				c.Set(identityGinKey, identity)
				c.Next()
				return
			}
			logger.Warn("session authentication failed", "error", err)
		}

		writeError(c, 401, "UNAUTHORIZED", "missing or invalid credentials", nil)
		c.Abort()
	}
}
