package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"github.com/nexuspay/webhook-relay/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	headerSignature = "Circle-Signature"
	headerTimestamp = "Circle-Timestamp"
)

type Gateway interface {
	Admit(ctx context.Context, meta service.RequestMeta, rawBody []byte) (service.Admission, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) error
}

type Reprocessor interface {
	Process(ctx context.Context, input service.ProcessInput) (domain.AttemptOutcome, error)
}

type StatsCollector interface {
	Collect(ctx context.Context, days int) (*service.Statistics, error)
}

type HealthReporter interface {
	Snapshot(ctx context.Context) service.HealthSnapshot
}

// ConfigEcho is the sanitized configuration exposed on the management API.
// No secrets, no DSNs.
type ConfigEcho struct {
	SignatureVerification bool     `json:"signatureVerification"`
	ForwardingEnabled     bool     `json:"forwardingEnabled"`
	RequestLogsEnabled    bool     `json:"requestLogsEnabled"`
	MaxRetries            int      `json:"maxRetries"`
	RetryDelaySeconds     int      `json:"retryDelaySeconds"`
	RetrySweepSeconds     int      `json:"retrySweepSeconds"`
	AllowedIPs            []string `json:"allowedIps"`
	SubscribedEvents      []string `json:"subscribedEvents"`
}

type WebhookHandler struct {
	gateway     Gateway
	sweeper     Sweeper
	reprocessor Reprocessor
	stats       StatsCollector
	health      HealthReporter
	events      repository.EventRepository
	attempts    repository.AttemptRepository
	signatures  repository.SignatureRepository
	requestLogs repository.RequestLogRepository
	configEcho  ConfigEcho
}

func NewWebhookHandler(
	gateway Gateway,
	sweeper Sweeper,
	reprocessor Reprocessor,
	stats StatsCollector,
	health HealthReporter,
	events repository.EventRepository,
	attempts repository.AttemptRepository,
	signatures repository.SignatureRepository,
	requestLogs repository.RequestLogRepository,
	configEcho ConfigEcho,
) (*WebhookHandler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper is required")
	}
	if reprocessor == nil {
		return nil, fmt.Errorf("reprocessor is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats collector is required")
	}
	if health == nil {
		return nil, fmt.Errorf("health reporter is required")
	}
	if events == nil || attempts == nil || signatures == nil {
		return nil, fmt.Errorf("event, attempt, and signature repositories are required")
	}

	return &WebhookHandler{
		gateway:     gateway,
		sweeper:     sweeper,
		reprocessor: reprocessor,
		stats:       stats,
		health:      health,
		events:      events,
		attempts:    attempts,
		signatures:  signatures,
		requestLogs: requestLogs,
		configEcho:  configEcho,
	}, nil
}

func RegisterWebhookRoutes(router fiber.Router, h *WebhookHandler) {
	webhooks := router.Group("/webhooks")
	webhooks.Head("/", h.Ping)
	webhooks.Post("/circle", h.Receive)
	webhooks.Get("/events", h.ListEvents)
	webhooks.Get("/attempts", h.ListAttempts)
	webhooks.Get("/signatures", h.ListSignatures)
	webhooks.Get("/statistics", h.Statistics)
	webhooks.Get("/health", h.Health)
	webhooks.Get("/config", h.Config)
	webhooks.Post("/retry", h.Retry)

	logs := router.Group("/webhook-logs")
	logs.Get("/", h.ListRequestLogs)
	logs.Post("/:id/resend", h.ResendRequestLog)
}

// Ping answers provider endpoint validation probes.
func (h *WebhookHandler) Ping(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// Fiber reuses request buffers after the handler returns; the body and
	// headers must be copied before the deferred pipeline sees them.
	rawBody := append([]byte(nil), c.Body()...)
	meta := service.RequestMeta{
		ForwardedFor: strings.Clone(c.Get(fiber.HeaderXForwardedFor)),
		RealIP:       strings.Clone(c.Get("X-Real-IP")),
		PeerIP:       strings.Clone(c.IP()),
		Signature:    strings.Clone(c.Get(headerSignature)),
		Timestamp:    strings.Clone(c.Get(headerTimestamp)),
	}

	admission, err := h.gateway.Admit(c.Context(), meta, rawBody)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": string(admission),
	})
}

func (h *WebhookHandler) ListEvents(c *fiber.Ctx) error {
	params := repository.EventListParams{Limit: listLimit(c)}
	if notificationType := strings.TrimSpace(c.Query("type")); notificationType != "" {
		params.NotificationType = &notificationType
	}

	events, err := h.events.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  toEventResponses(events),
		"count": len(events),
	})
}

func (h *WebhookHandler) ListAttempts(c *fiber.Ctx) error {
	params := repository.AttemptListParams{Limit: listLimit(c)}
	if rawOutcome := strings.TrimSpace(c.Query("outcome")); rawOutcome != "" {
		outcome, err := domain.ParseAttemptOutcome(rawOutcome)
		if err != nil {
			return toHTTPError(err)
		}
		params.Outcome = &outcome
	}

	attempts, err := h.attempts.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  toAttemptResponses(attempts),
		"count": len(attempts),
	})
}

func (h *WebhookHandler) ListSignatures(c *fiber.Ctx) error {
	params := repository.SignatureListParams{Limit: listLimit(c)}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseVerificationStatus(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	records, err := h.signatures.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  toSignatureResponses(records),
		"count": len(records),
	})
}

func (h *WebhookHandler) Statistics(c *fiber.Ctx) error {
	days := c.QueryInt("days", 0)
	stats, err := h.stats.Collect(c.Context(), days)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *WebhookHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.health.Snapshot(c.Context()))
}

func (h *WebhookHandler) Config(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.configEcho)
}

// Retry triggers a sweep immediately instead of waiting for the next ticker
// edge.
func (h *WebhookHandler) Retry(c *fiber.Ctx) error {
	if err := h.sweeper.Sweep(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "sweep_completed",
	})
}

func (h *WebhookHandler) ListRequestLogs(c *fiber.Ctx) error {
	if h.requestLogs == nil {
		return fiber.NewError(fiber.StatusNotFound, "request logging is disabled")
	}

	logs, err := h.requestLogs.List(c.Context(), listLimit(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  toRequestLogResponses(logs),
		"count": len(logs),
	})
}

func (h *WebhookHandler) ResendRequestLog(c *fiber.Ctx) error {
	if h.requestLogs == nil {
		return fiber.NewError(fiber.StatusNotFound, "request logging is disabled")
	}

	id := strings.TrimSpace(c.Params("id"))
	entry, err := h.requestLogs.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	outcome, err := h.reprocessor.Process(c.Context(), service.ProcessInput{RawBody: entry.Payload})
	if err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"logId":   id,
			"outcome": outcome.String(),
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"logId":   id,
		"outcome": outcome.String(),
	})
}

func listLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

type eventResponse struct {
	ID               string    `json:"id"`
	SubscriptionID   string    `json:"subscriptionId,omitempty"`
	NotificationID   string    `json:"notificationId"`
	NotificationType string    `json:"notificationType"`
	Payload          string    `json:"payload"`
	OccurredAt       time.Time `json:"occurredAt"`
	SchemaVersion    int       `json:"schemaVersion"`
	ReceivedAt       time.Time `json:"receivedAt"`
}

type attemptResponse struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notificationId"`
	AttemptNumber  int       `json:"attemptNumber"`
	Outcome        string    `json:"outcome"`
	ErrorDetail    *string   `json:"errorDetail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type signatureResponse struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notificationId"`
	Timestamp      string    `json:"timestamp,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type requestLogResponse struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId,omitempty"`
	EventType      string     `json:"eventType,omitempty"`
	Status         string     `json:"status"`
	ErrorDetail    *string    `json:"errorDetail,omitempty"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toEventResponses(events []domain.NotificationEvent) []eventResponse {
	responses := make([]eventResponse, 0, len(events))
	for _, e := range events {
		responses = append(responses, eventResponse{
			ID:               e.ID,
			SubscriptionID:   e.SubscriptionID,
			NotificationID:   e.NotificationID,
			NotificationType: e.NotificationType,
			Payload:          string(e.Payload),
			OccurredAt:       e.OccurredAt,
			SchemaVersion:    e.SchemaVersion,
			ReceivedAt:       e.ReceivedAt,
		})
	}
	return responses
}

func toAttemptResponses(attempts []domain.DeliveryAttempt) []attemptResponse {
	responses := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		responses = append(responses, attemptResponse{
			ID:             a.ID,
			NotificationID: a.NotificationID,
			AttemptNumber:  a.AttemptNumber,
			Outcome:        a.Outcome.String(),
			ErrorDetail:    a.ErrorDetail,
			CreatedAt:      a.CreatedAt,
		})
	}
	return responses
}

func toSignatureResponses(records []domain.SignatureRecord) []signatureResponse {
	responses := make([]signatureResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, signatureResponse{
			ID:             r.ID,
			NotificationID: r.NotificationID,
			Timestamp:      r.Timestamp,
			Status:         r.Status.String(),
			CreatedAt:      r.CreatedAt,
		})
	}
	return responses
}

func toRequestLogResponses(logs []domain.RequestLog) []requestLogResponse {
	responses := make([]requestLogResponse, 0, len(logs))
	for _, l := range logs {
		responses = append(responses, requestLogResponse{
			ID:             l.ID,
			NotificationID: l.NotificationID,
			EventType:      l.EventType,
			Status:         l.Status,
			ErrorDetail:    l.ErrorDetail,
			ProcessedAt:    l.ProcessedAt,
			CreatedAt:      l.CreatedAt,
		})
	}
	return responses
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorizedIP):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
