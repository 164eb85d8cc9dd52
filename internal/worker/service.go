// Package worker runs periodic jobs (transfer maturation, stale payment
// recovery, promotion expiry) on a single ticking loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/metrics"
)

const (
	defaultInterval = time.Minute
	defaultTimeout  = 30 * time.Second
)

// Params configure the worker service.
type Params struct {
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// Timeout bounds one tick.
	Timeout time.Duration
}

// Service executes registered jobs on a fixed cadence. Ticks never overlap
// within a process, and the Lock skips a tick held by another process.
type Service struct {
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
	timeout  time.Duration
}

func NewService(p Params) (*Service, error) {
	if p.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := p.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		registry: registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: interval,
		timeout:  timeout,
	}, nil
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Service) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Int("jobs", len(s.registry.Jobs())).Msg("Starting worker...")

	if err := s.Tick(ctx); err != nil {
		log.Error().Err(err).Msg("Worker tick failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping worker...")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("Worker tick failed")
			}
		}
	}
}

// Tick runs every job once. A failing job does not stop the others.
func (s *Service) Tick(ctx context.Context) error {
	tickCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	locked, err := s.lock.Acquire(tickCtx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		log.Debug().Msg("Another worker holds the lock, skipping tick")
		s.metrics.IncSkipped()
		return nil
	}
	defer func() {
		// release even if the tick context expired
		relCtx, relCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer relCancel()
		if err := s.lock.Release(relCtx); err != nil {
			log.Error().Err(err).Msg("Failed to release worker lock")
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(tickCtx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	logger := log.With().Str("job", job.Name()).Logger()
	start := time.Now()

	err := job.Run(logger.WithContext(ctx))

	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("Job failed")
		s.metrics.IncFailure(job.Name())
		return
	}
	logger.Debug().Dur("duration", duration).Msg("Job completed")
	s.metrics.IncSuccess(job.Name())
}
