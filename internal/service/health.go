package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HealthChecker probes downstream reachability.
type HealthChecker interface {
	Enabled() bool
	CheckHealth(ctx context.Context) bool
}

// HealthSnapshot is the management view of service health.
type HealthSnapshot struct {
	Status               string `json:"status"`
	DownstreamConfigured bool   `json:"downstreamConfigured"`
	DownstreamHealthy    bool   `json:"downstreamHealthy"`
	SignatureVerify      bool   `json:"signatureVerification"`
	ForwardingEnabled    bool   `json:"forwardingEnabled"`
	RequestLogsEnabled   bool   `json:"requestLogsEnabled"`
	MaxRetries           int    `json:"maxRetries"`
}

// HealthService builds health snapshots for the management API.
type HealthService struct {
	checker            HealthChecker
	signatureVerify    bool
	requestLogsEnabled bool
	maxRetries         int
}

func NewHealthService(checker HealthChecker, signatureVerify, requestLogsEnabled bool, maxRetries int) *HealthService {
	return &HealthService{
		checker:            checker,
		signatureVerify:    signatureVerify,
		requestLogsEnabled: requestLogsEnabled,
		maxRetries:         maxRetries,
	}
}

func (h *HealthService) Snapshot(ctx context.Context) HealthSnapshot {
	snapshot := HealthSnapshot{
		Status:             "ok",
		SignatureVerify:    h.signatureVerify,
		RequestLogsEnabled: h.requestLogsEnabled,
		MaxRetries:         h.maxRetries,
	}

	if h.checker != nil && h.checker.Enabled() {
		snapshot.DownstreamConfigured = true
		snapshot.ForwardingEnabled = true
		snapshot.DownstreamHealthy = h.checker.CheckHealth(ctx)
		if !snapshot.DownstreamHealthy {
			snapshot.Status = "degraded"
		}
	}

	return snapshot
}

const defaultHealthCheckInterval = time.Minute

// HealthMonitor periodically probes the downstream and logs transitions.
type HealthMonitor struct {
	checker  HealthChecker
	logger   *zap.Logger
	interval time.Duration
}

func NewHealthMonitor(checker HealthChecker, interval time.Duration, logger *zap.Logger) (*HealthMonitor, error) {
	if checker == nil {
		return nil, fmt.Errorf("health checker is required")
	}
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HealthMonitor{
		checker:  checker,
		logger:   logger,
		interval: interval,
	}, nil
}

func (m *HealthMonitor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !m.checker.Enabled() {
		m.logger.Info("downstream health monitor disabled, no downstream url")
		<-ctx.Done()
		return nil
	}

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *HealthMonitor) probe(ctx context.Context) {
	if m.checker.CheckHealth(ctx) {
		m.logger.Debug("downstream healthy")
		return
	}
	if ctx.Err() != nil {
		return
	}
	m.logger.Warn("downstream unhealthy")
}
