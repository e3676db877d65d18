package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	"github.com/MNhat168/careerhub/internal/userctx"
)

// TokenRequired resolves the bearer token into a user and stamps the
// identity onto the request context.
func (s *Server) TokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.FindByToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := userctx.WithUserID(c.Request.Context(), user.ID)
		ctx = userctx.WithRole(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !userctx.IsAdmin(c.Request.Context()) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RateLimited throttles unauthenticated endpoints per client IP.
func (s *Server) RateLimited(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.Allow(c.Request.Context(), endpoint, c.ClientIP())
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
		}
		if !res.Allowed {
			s.metrics.IncRateLimitDenied(endpoint)
			c.Header("Retry-After", res.RetryAfter.Round(time.Second).String())
			respond(c, http.StatusTooManyRequests, "rate_limited", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func clientInfo(c *gin.Context) enforcerdomain.ClientInfo {
	return enforcerdomain.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	return userctx.UserIDFromContext(c.Request.Context())
}
