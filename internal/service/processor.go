package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/lock"
	"github.com/nexuspay/webhook-relay/internal/observability"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"github.com/nexuspay/webhook-relay/internal/verifier"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// Forwarder relays an accepted payload downstream.
type Forwarder interface {
	Enabled() bool
	Forward(ctx context.Context, body []byte) error
}

// Processor runs the full pipeline for one inbound notification: signature
// decision, idempotent storage, domain routing, downstream forwarding, and
// the delivery attempt record. Live requests and retry sweeps share it.
type Processor struct {
	events       repository.EventRepository
	attempts     repository.AttemptRepository
	signatures   repository.SignatureRepository
	transactions repository.TransactionRepository
	balances     repository.BalanceRepository
	forwarder    Forwarder
	locker       lock.Locker
	verifier     *verifier.Verifier
	logger       *zap.Logger
	metrics      *observability.Metrics
	maxRetries   int
	now          func() time.Time
}

func NewProcessor(
	events repository.EventRepository,
	attempts repository.AttemptRepository,
	signatures repository.SignatureRepository,
	transactions repository.TransactionRepository,
	balances repository.BalanceRepository,
	forwarder Forwarder,
	locker lock.Locker,
	v *verifier.Verifier,
	maxRetries int,
	logger *zap.Logger,
) (*Processor, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if signatures == nil {
		return nil, fmt.Errorf("signature repository is required")
	}
	if transactions == nil {
		return nil, fmt.Errorf("transaction repository is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance repository is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if v == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{
		events:       events,
		attempts:     attempts,
		signatures:   signatures,
		transactions: transactions,
		balances:     balances,
		forwarder:    forwarder,
		locker:       locker,
		verifier:     v,
		logger:       logger,
		maxRetries:   maxRetries,
		now:          time.Now,
	}, nil
}

func (p *Processor) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// ProcessInput is one request worth of pipeline input. RawBody is the exact
// bytes the sender posted; Signature and Timestamp come from the request
// headers and may be empty.
type ProcessInput struct {
	RawBody   []byte
	Signature string
	Timestamp string
}

// Process claims the notification id, runs the pipeline once, and records a
// delivery attempt with the next attempt number. When the id is already
// claimed by a concurrent request or sweep the pass is skipped without an
// attempt record.
func (p *Processor) Process(ctx context.Context, input ProcessInput) (domain.AttemptOutcome, error) {
	env, err := domain.ParseEnvelope(input.RawBody)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if err := env.Validate(); err != nil {
		return domain.OutcomeFailed, err
	}

	ctx = observability.WithNotificationID(ctx, env.NotificationID)
	logger := observability.WithContextLogger(p.logger, ctx)

	release, acquired, err := p.locker.Acquire(ctx, env.NotificationID)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("failed to claim notification: %w", err)
	}
	if !acquired {
		logger.Info("notification already claimed, skipping pass")
		return domain.OutcomeRetryScheduled, nil
	}
	defer release()

	start := p.now()
	pipelineErr := p.runPipeline(ctx, logger, env, input)
	p.metrics.ObserveProcessingDuration(env.NotificationType, p.now().Sub(start))

	outcome, err := p.recordAttempt(ctx, logger, env, input.RawBody, pipelineErr)
	if err != nil {
		return domain.OutcomeFailed, err
	}

	p.metrics.IncWebhookProcessed(outcome.String())
	return outcome, pipelineErr
}

func (p *Processor) runPipeline(ctx context.Context, logger *zap.Logger, env domain.InboundNotification, input ProcessInput) error {
	// Verification only applies when both headers arrived together. Unsigned
	// requests and retry replays of the stored payload skip the check; Decide
	// still downgrades to skipped when no secret is configured.
	if input.Signature != "" && input.Timestamp != "" {
		status := p.verifier.Decide(input.RawBody, input.Signature, input.Timestamp)

		record := &domain.SignatureRecord{
			ID:             uuid.NewString(),
			NotificationID: env.NotificationID,
			Signature:      input.Signature,
			Timestamp:      input.Timestamp,
			Status:         status,
			CreatedAt:      p.now(),
		}
		if err := p.signatures.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to record signature: %w", err)
		}

		// A failed signature blocks storage and routing. The signature
		// record and the failed attempt are the only trace left behind.
		if status == domain.VerificationFailed {
			return fmt.Errorf("%w: signature verification failed", domain.ErrValidation)
		}
	}

	if err := p.storeEvent(ctx, logger, env, input.RawBody); err != nil {
		return err
	}

	if err := p.route(ctx, logger, env); err != nil {
		return err
	}

	return p.forward(ctx, logger, input.RawBody)
}

func (p *Processor) storeEvent(ctx context.Context, logger *zap.Logger, env domain.InboundNotification, rawBody []byte) error {
	now := p.now()
	event := &domain.NotificationEvent{
		ID:               uuid.NewString(),
		SubscriptionID:   env.SubscriptionID,
		NotificationID:   env.NotificationID,
		NotificationType: env.NotificationType,
		Payload:          rawBody,
		OccurredAt:       env.OccurredAt(now),
		SchemaVersion:    env.Version,
		ReceivedAt:       now,
	}
	if event.SchemaVersion <= 0 {
		event.SchemaVersion = 1
	}
	if err := event.Validate(); err != nil {
		return err
	}

	created, err := p.events.Create(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	if !created {
		// Redelivery. The stored event wins; routing still runs because
		// the handlers are safe to re-apply.
		p.metrics.IncDuplicateEvent()
		logger.Info("duplicate notification absorbed",
			zap.String("notificationType", env.NotificationType),
		)
		return nil
	}

	logger.Info("webhook_event_saved",
		zap.String("notificationType", env.NotificationType),
		zap.String("subscriptionId", env.SubscriptionID),
	)
	return nil
}

func (p *Processor) forward(ctx context.Context, logger *zap.Logger, rawBody []byte) error {
	if p.forwarder == nil || !p.forwarder.Enabled() {
		return nil
	}

	if err := p.forwarder.Forward(ctx, rawBody); err != nil {
		p.metrics.IncForwarded("failed")
		return fmt.Errorf("failed to forward downstream: %w", err)
	}

	p.metrics.IncForwarded("success")
	logger.Info("notification forwarded downstream")
	return nil
}

func (p *Processor) recordAttempt(ctx context.Context, logger *zap.Logger, env domain.InboundNotification, rawBody []byte, pipelineErr error) (domain.AttemptOutcome, error) {
	priorCount, err := p.attempts.CountByNotificationID(ctx, env.NotificationID)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("failed to count attempts: %w", err)
	}
	attemptNumber := int(priorCount) + 1

	outcome := domain.OutcomeSuccess
	var errorDetail *string
	if pipelineErr != nil {
		outcome = domain.OutcomeFailed
		detail := pipelineErr.Error()
		errorDetail = &detail
	}

	attempt := &domain.DeliveryAttempt{
		ID:              uuid.NewString(),
		NotificationID:  env.NotificationID,
		AttemptNumber:   attemptNumber,
		Outcome:         outcome,
		ErrorDetail:     errorDetail,
		PayloadSnapshot: rawBody,
		CreatedAt:       p.now(),
	}
	if err := p.attempts.Create(ctx, attempt); err != nil {
		return domain.OutcomeFailed, fmt.Errorf("failed to record attempt: %w", err)
	}

	if pipelineErr != nil {
		logger.Warn("processing pass failed",
			zap.Int("attemptNumber", attemptNumber),
			zap.Error(pipelineErr),
		)
		if attemptNumber >= p.maxRetries {
			logger.Error("retry ceiling reached, notification parked",
				zap.Int("attemptNumber", attemptNumber),
				zap.Int("maxRetries", p.maxRetries),
			)
		}
	} else {
		logger.Info("processing pass succeeded", zap.Int("attemptNumber", attemptNumber))
	}

	return outcome, nil
}
