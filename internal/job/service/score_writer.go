package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/clock"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	matchingdomain "github.com/MNhat168/careerhub/internal/matching/domain"
)

type ScoreWriterParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

// ScoreWriter persists worker scores onto application rows. It is a
// separate component from Service so the scoring queue does not depend
// on the service that feeds it.
type ScoreWriter struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewScoreWriter(p ScoreWriterParam) matchingdomain.Sink {
	return &ScoreWriter{
		db:    p.DB,
		log:   p.Log.Named("job.scorewriter"),
		clock: p.Clock,
	}
}

func (w *ScoreWriter) SaveScore(ctx context.Context, applicationID snowflake.ID, score matchingdomain.Score) error {
	now := w.clock.Now()
	res := w.db.WithContext(ctx).
		Model(&jobdomain.Application{}).
		Where("id = ?", applicationID).
		Updates(map[string]any{
			"match_score":  score.Value,
			"score_source": string(score.Source),
			"score_reason": score.Reason,
			"scored_at":    now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Application withdrawn or deleted while the task was queued.
		w.log.Debug("score target gone", zap.String("application_id", applicationID.String()))
	}
	return nil
}
