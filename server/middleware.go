package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	userIDHeader     = "X-User-Id"
	adminTokenHeader = "X-Admin-Token"
	userKey          = "userID"
)

// accessLogger logs each API request through logrus
func accessLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}
		if userID, ok := c.Get(userKey); ok {
			fields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := log.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.FullPath() == "/healthz":
			entry.Debug("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// requireUser resolves the caller from X-User-Id, creating the user on first sight
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(userIDHeader)
		if raw == "" {
			abortWithError(c, http.StatusUnauthorized, "missing "+userIDHeader+" header", "unauthorized")
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			abortWithError(c, http.StatusUnauthorized, "invalid "+userIDHeader+" header", "unauthorized")
			return
		}

		if _, err := s.services.Users.GetOrCreateUser(c.Request.Context(), userID, fmt.Sprintf("player-%d", userID)); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(userKey, userID)
		c.Next()
	}
}

// requireAdmin checks X-Admin-Token against the configured token
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.options.AdminToken == "" {
			abortWithError(c, http.StatusForbidden, "admin endpoints are disabled", "forbidden")
			return
		}

		token := c.GetHeader(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.options.AdminToken)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "invalid admin token", "unauthorized")
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userKey)
}
