package gateway

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RecoveryJob fails payments left pending past the timeout.
type RecoveryJob struct {
	svc *Service
}

func NewRecoveryJob(svc *Service) *RecoveryJob {
	return &RecoveryJob{svc: svc}
}

func (j *RecoveryJob) Name() string { return "gateway_recovery" }

func (j *RecoveryJob) Run(ctx context.Context) error {
	n, err := j.svc.RecoverStalePending(ctx)
	if n > 0 {
		log.Ctx(ctx).Warn().Int("count", n).Msg("Recovered stale pending gateway payments")
	}
	return err
}
