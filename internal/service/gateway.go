package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/observability"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"go.uber.org/zap"
)

// Admission is the gateway's decision for one inbound request.
type Admission string

const (
	AdmissionAccepted Admission = "accepted"
	AdmissionIgnored  Admission = "ignored"
	AdmissionRejected Admission = "rejected"
)

// RequestMeta carries the transport facts admission needs.
type RequestMeta struct {
	ForwardedFor string
	RealIP       string
	PeerIP       string
	Signature    string
	Timestamp    string
}

// ResolveClientIP picks the client address: first X-Forwarded-For entry,
// then X-Real-IP, then the socket peer.
func (m RequestMeta) ResolveClientIP() string {
	if m.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(m.ForwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(m.RealIP); ip != "" {
		return ip
	}
	return strings.TrimSpace(m.PeerIP)
}

// Dispatcher hands a task off the request path.
type Dispatcher interface {
	Submit(task func(ctx context.Context)) error
}

// Gateway admits inbound webhook requests: source address check, subscribed
// event filter, then fire-and-forget dispatch into the processor. The sender
// is never blocked on pipeline work.
type Gateway struct {
	processor        *Processor
	dispatcher       Dispatcher
	requestLogs      repository.RequestLogRepository
	allowedIPs       map[string]struct{}
	subscribedEvents map[string]struct{}
	logsEnabled      bool
	logger           *zap.Logger
	metrics          *observability.Metrics
	now              func() time.Time
}

func NewGateway(
	processor *Processor,
	dispatcher Dispatcher,
	requestLogs repository.RequestLogRepository,
	allowedIPs []string,
	subscribedEvents []string,
	logsEnabled bool,
	logger *zap.Logger,
) (*Gateway, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logsEnabled && requestLogs == nil {
		return nil, fmt.Errorf("request log repository is required when logging is enabled")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		processor:   processor,
		dispatcher:  dispatcher,
		requestLogs: requestLogs,
		logsEnabled: logsEnabled,
		logger:      logger,
		now:         time.Now,
	}
	if len(allowedIPs) > 0 {
		g.allowedIPs = make(map[string]struct{}, len(allowedIPs))
		for _, ip := range allowedIPs {
			g.allowedIPs[strings.TrimSpace(ip)] = struct{}{}
		}
	}
	if len(subscribedEvents) > 0 {
		g.subscribedEvents = make(map[string]struct{}, len(subscribedEvents))
		for _, event := range subscribedEvents {
			g.subscribedEvents[strings.TrimSpace(event)] = struct{}{}
		}
	}
	return g, nil
}

func (g *Gateway) SetMetrics(metrics *observability.Metrics) {
	if g == nil {
		return
	}
	g.metrics = metrics
}

// Admit decides the fate of one inbound request and, when accepted,
// schedules the pipeline. An empty allow-list admits every address; an
// empty subscription list admits every notification type.
func (g *Gateway) Admit(ctx context.Context, meta RequestMeta, rawBody []byte) (Admission, error) {
	clientIP := meta.ResolveClientIP()
	if g.allowedIPs != nil {
		if _, ok := g.allowedIPs[clientIP]; !ok {
			g.metrics.IncWebhookReceived(string(AdmissionRejected))
			g.logger.Warn("webhook rejected by source address",
				zap.String("clientIp", clientIP),
			)
			g.appendRequestLog(ctx, "", "", rawBody, string(AdmissionRejected), "source address not allowed")
			return AdmissionRejected, fmt.Errorf("%w: %s", domain.ErrUnauthorizedIP, clientIP)
		}
	}

	env, err := domain.ParseEnvelope(rawBody)
	if err != nil {
		g.metrics.IncWebhookReceived(string(AdmissionRejected))
		g.appendRequestLog(ctx, "", "", rawBody, string(AdmissionRejected), "malformed envelope")
		return AdmissionRejected, err
	}
	if err := env.Validate(); err != nil {
		g.metrics.IncWebhookReceived(string(AdmissionRejected))
		g.appendRequestLog(ctx, env.NotificationID, env.NotificationType, rawBody, string(AdmissionRejected), "invalid envelope")
		return AdmissionRejected, err
	}

	if g.subscribedEvents != nil {
		if _, ok := g.subscribedEvents[env.NotificationType]; !ok {
			g.metrics.IncWebhookReceived(string(AdmissionIgnored))
			g.logger.Info("webhook ignored, not a subscribed event",
				zap.String("notificationId", env.NotificationID),
				zap.String("notificationType", env.NotificationType),
			)
			g.appendRequestLog(ctx, env.NotificationID, env.NotificationType, rawBody, string(AdmissionIgnored), "")
			return AdmissionIgnored, nil
		}
	}

	input := ProcessInput{
		RawBody:   rawBody,
		Signature: meta.Signature,
		Timestamp: meta.Timestamp,
	}
	if err := g.dispatcher.Submit(func(taskCtx context.Context) {
		if _, err := g.processor.Process(taskCtx, input); err != nil {
			g.logger.Warn("deferred processing failed",
				zap.String("notificationId", env.NotificationID),
				zap.Error(err),
			)
		}
	}); err != nil {
		g.metrics.IncWebhookReceived(string(AdmissionRejected))
		g.appendRequestLog(ctx, env.NotificationID, env.NotificationType, rawBody, string(AdmissionRejected), "dispatch failed")
		return AdmissionRejected, fmt.Errorf("failed to dispatch webhook: %w", err)
	}

	g.metrics.IncWebhookReceived(string(AdmissionAccepted))
	g.logger.Info("webhook accepted",
		zap.String("notificationId", env.NotificationID),
		zap.String("notificationType", env.NotificationType),
		zap.String("clientIp", clientIP),
	)
	g.appendRequestLog(ctx, env.NotificationID, env.NotificationType, rawBody, string(AdmissionAccepted), "")
	return AdmissionAccepted, nil
}

func (g *Gateway) appendRequestLog(ctx context.Context, notificationID, eventType string, rawBody []byte, status, detail string) {
	if !g.logsEnabled {
		return
	}

	entry := &domain.RequestLog{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		EventType:      eventType,
		Payload:        rawBody,
		Status:         status,
		CreatedAt:      g.now(),
	}
	if detail != "" {
		entry.ErrorDetail = &detail
	}

	if err := g.requestLogs.Create(ctx, entry); err != nil {
		g.logger.Warn("failed to append request log", zap.Error(err))
	}
}
