package promotion

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ExpiryJob flips lapsed promotions to expired on every worker tick.
type ExpiryJob struct {
	engine *Engine
}

func NewExpiryJob(engine *Engine) *ExpiryJob {
	return &ExpiryJob{engine: engine}
}

func (j *ExpiryJob) Name() string { return "promotion_expiry" }

func (j *ExpiryJob) Run(ctx context.Context) error {
	count, err := j.engine.ExpireSweep(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Ctx(ctx).Info().Int64("count", count).Msg("Expired listing promotions")
	}
	return nil
}
