package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookingflow/directory"
)

const userKey = "bookingflow.user"

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Duration("latency", time.Since(start)),
		}
		if u, ok := currentUser(c); ok {
			attrs = append(attrs, slog.Int64("user_id", u.ID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
			logger.Warn("http request", attrs...)
			return
		}
		logger.Info("http request", attrs...)
	}
}

// AuthMiddleware resolves the bearer token into the current user.
func AuthMiddleware(accounts Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		user, err := accounts.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(err)
			status, msg := statusFor(err)
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireStaff rejects callers that are not admins.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok || !u.Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (directory.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return directory.User{}, false
	}
	u, ok := v.(directory.User)
	return u, ok
}
