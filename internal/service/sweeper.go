package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/observability"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval  = 5 * time.Minute
	defaultSweepDelay     = time.Minute
	defaultSweepScanLimit = 100
)

// RetrySweeper periodically re-runs the pipeline for notifications whose
// latest attempt failed below the retry ceiling. Candidates are processed
// serially with a fixed delay between items.
type RetrySweeper struct {
	events     repository.EventRepository
	attempts   repository.AttemptRepository
	processor  *Processor
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	retryDelay time.Duration
	maxRetries int
	limit      int
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRetrySweeper(
	events repository.EventRepository,
	attempts repository.AttemptRepository,
	processor *Processor,
	interval time.Duration,
	retryDelay time.Duration,
	maxRetries int,
	logger *zap.Logger,
) (*RetrySweeper, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if retryDelay <= 0 {
		retryDelay = defaultSweepDelay
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetrySweeper{
		events:     events,
		attempts:   attempts,
		processor:  processor,
		logger:     logger,
		interval:   interval,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
		limit:      defaultSweepScanLimit,
		sleep:      sleepWithContext,
	}, nil
}

func (s *RetrySweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *RetrySweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so overdue retries do not wait for the first
	// ticker edge.
	if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry sweeper initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry sweeper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass over the current retry candidates. Also invoked
// directly by the management retry endpoint.
func (s *RetrySweeper) Sweep(ctx context.Context) error {
	s.metrics.IncRetrySweep()

	candidates, err := s.attempts.ListRetryCandidates(ctx, s.maxRetries, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch retry candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	s.logger.Info("retry sweep started", zap.Int("candidates", len(candidates)))

	for i := range candidates {
		if i > 0 {
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return nil
			}
		}

		candidate := candidates[i]
		event, err := s.events.GetByNotificationID(ctx, candidate.NotificationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// No stored event means the failure happened before
				// storage, typically a rejected signature. Nothing to
				// replay.
				s.logger.Warn("retry candidate has no stored event, skipping",
					zap.String("notificationId", candidate.NotificationID),
				)
				continue
			}
			s.logger.Error("failed to load event for retry",
				zap.String("notificationId", candidate.NotificationID),
				zap.Error(err),
			)
			continue
		}

		s.metrics.IncRetryAttempted()
		if _, err := s.processor.Process(ctx, ProcessInput{RawBody: event.Payload}); err != nil {
			s.logger.Warn("retry pass failed",
				zap.String("notificationId", candidate.NotificationID),
				zap.Int("priorAttempt", candidate.AttemptNumber),
				zap.Error(err),
			)
		}
	}

	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
