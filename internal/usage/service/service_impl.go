package service

import (
	"context"
	"strings"
	"time"

	"github.com/MNhat168/careerhub/internal/clock"
	obsmetrics "github.com/MNhat168/careerhub/internal/observability/metrics"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/MNhat168/careerhub/pkg/db/option"
	"github.com/MNhat168/careerhub/pkg/db/pagination"
	"github.com/MNhat168/careerhub/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    repository.Repository[usagedomain.UsageEvent]
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    repository.ProvideStore[usagedomain.UsageEvent](p.DB),
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	if req.UserID == 0 {
		return nil, usagedomain.ErrInvalidUser
	}
	if _, err := usagedomain.ParseAction(string(req.Action)); err != nil {
		return nil, err
	}
	if req.Outcome != usagedomain.OutcomeAllowed && req.Outcome != usagedomain.OutcomeBlocked {
		return nil, usagedomain.ErrInvalidOutcome
	}
	periodKey := strings.TrimSpace(req.PeriodKey)
	if periodKey == "" {
		return nil, usagedomain.ErrInvalidPeriodKey
	}

	detail, err := usagedomain.MarshalDetail(req.Detail)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	recordedAt := req.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = now
	}

	event := &usagedomain.UsageEvent{
		ID:         s.genID.Generate(),
		UserID:     req.UserID,
		Action:     req.Action,
		PeriodKey:  periodKey,
		Outcome:    req.Outcome,
		Detail:     detail,
		ClientIP:   strings.TrimSpace(req.ClientIP),
		UserAgent:  strings.TrimSpace(req.UserAgent),
		RecordedAt: recordedAt,
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncLedgerWriteFailure(string(req.Action))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncUsageEvent(string(req.Action), string(req.Outcome))
	}

	return event, nil
}

func (s *Service) CountInPeriod(ctx context.Context, userID snowflake.ID, action usagedomain.Action, periodKey string) (int64, error) {
	if userID == 0 {
		return 0, usagedomain.ErrInvalidUser
	}
	return s.repo.Count(ctx, &usagedomain.UsageEvent{
		UserID:    userID,
		Action:    action,
		PeriodKey: periodKey,
		Outcome:   usagedomain.OutcomeAllowed,
	})
}

func (s *Service) History(ctx context.Context, req usagedomain.HistoryRequest) (usagedomain.HistoryResponse, error) {
	if req.UserID == 0 {
		return usagedomain.HistoryResponse{}, usagedomain.ErrInvalidUser
	}

	filter := &usagedomain.UsageEvent{UserID: req.UserID}

	if action := strings.TrimSpace(req.Action); action != "" {
		parsed, err := usagedomain.ParseAction(action)
		if err != nil {
			return usagedomain.HistoryResponse{}, err
		}
		filter.Action = parsed
	}
	if outcome := strings.TrimSpace(req.Outcome); outcome != "" {
		switch usagedomain.Outcome(outcome) {
		case usagedomain.OutcomeAllowed, usagedomain.OutcomeBlocked:
			filter.Outcome = usagedomain.Outcome(outcome)
		default:
			return usagedomain.HistoryResponse{}, usagedomain.ErrInvalidOutcome
		}
	}
	if periodKey := strings.TrimSpace(req.PeriodKey); periodKey != "" {
		filter.PeriodKey = periodKey
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", map[string]bool{"created_at": true})),
	)
	if err != nil {
		return usagedomain.HistoryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event *usagedomain.UsageEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	events := make([]usagedomain.UsageEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := usagedomain.HistoryResponse{Events: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Stats(ctx context.Context, userID snowflake.ID, periodKey string) ([]usagedomain.ActionStat, error) {
	if userID == 0 {
		return nil, usagedomain.ErrInvalidUser
	}

	var rows []struct {
		Action  usagedomain.Action  `gorm:"column:action"`
		Outcome usagedomain.Outcome `gorm:"column:outcome"`
		Count   int64               `gorm:"column:count"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT action, outcome, COUNT(1) AS count
		 FROM usage_events
		 WHERE user_id = ? AND period_key = ?
		 GROUP BY action, outcome`,
		userID,
		periodKey,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	byAction := make(map[usagedomain.Action]*usagedomain.ActionStat, len(rows))
	for _, row := range rows {
		stat, ok := byAction[row.Action]
		if !ok {
			stat = &usagedomain.ActionStat{Action: row.Action}
			byAction[row.Action] = stat
		}
		switch row.Outcome {
		case usagedomain.OutcomeAllowed:
			stat.Allowed = row.Count
		case usagedomain.OutcomeBlocked:
			stat.Blocked = row.Count
		}
	}

	stats := make([]usagedomain.ActionStat, 0, len(byAction))
	for _, action := range usagedomain.Actions() {
		if stat, ok := byAction[action]; ok {
			stats = append(stats, *stat)
		}
	}
	return stats, nil
}

func (s *Service) AdminAnalytics(ctx context.Context, req usagedomain.AnalyticsRequest) ([]usagedomain.AnalyticsRow, error) {
	from := req.From
	to := req.To
	if to.IsZero() {
		to = s.clock.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}

	var rows []usagedomain.AnalyticsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT action, outcome, COUNT(1) AS count, COUNT(DISTINCT user_id) AS users
		 FROM usage_events
		 WHERE created_at >= ? AND created_at < ?
		 GROUP BY action, outcome
		 ORDER BY action, outcome`,
		from,
		to,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
