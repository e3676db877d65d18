package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/MNhat168/careerhub/internal/billingperiod"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
)

func (s *Server) UsageStats(c *gin.Context) {
	userID, _ := currentUserID(c)
	ctx := c.Request.Context()

	current, err := s.subscriptionSvc.GetCurrent(ctx, userID)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		AbortWithError(c, err)
		return
	}
	// current stays nil without an assignment; Resolve then yields
	// the free tier's calendar month.
	period := billingperiod.Resolve(current, s.clock.Now())

	stats, err := s.usageSvc.Stats(ctx, userID, period.Key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{
		"period": period,
		"stats":  stats,
	})
}

// UsageCheck is a dry-run: it reports the decision without consuming
// quota or recording anything.
func (s *Server) UsageCheck(c *gin.Context) {
	userID, _ := currentUserID(c)

	action, err := usagedomain.ParseAction(c.Param("action"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.enforcerSvc.Check(c.Request.Context(), userID, action)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, decision)
}

func (s *Server) UsageHistory(c *gin.Context) {
	userID, _ := currentUserID(c)

	pageSize := int64(20)
	if raw := c.Query("page_size"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 32); err == nil {
			pageSize = parsed
		}
	}

	history, err := s.usageSvc.History(c.Request.Context(), usagedomain.HistoryRequest{
		UserID:    userID,
		Action:    c.Query("action"),
		Outcome:   c.Query("outcome"),
		PeriodKey: c.Query("period_key"),
		PageToken: c.Query("page_token"),
		PageSize:  int32(pageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, history)
}

func (s *Server) UsageAnalytics(c *gin.Context) {
	var req usagedomain.AnalyticsRequest
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			req.From = parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			req.To = parsed
		}
	}

	rows, err := s.usageSvc.AdminAnalytics(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, rows)
}

func (s *Server) ResetUsage(c *gin.Context) {
	targetID, err := snowflake.ParseString(c.Param("userId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	assignment, err := s.subscriptionSvc.ResetUsage(c.Request.Context(), targetID, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, assignment)
}
