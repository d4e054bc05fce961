package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"github.com/nexuspay/webhook-relay/internal/service"
	"github.com/nexuspay/webhook-relay/internal/transport"
	"go.uber.org/zap"
)

type stubGateway struct {
	admitFn func(ctx context.Context, meta service.RequestMeta, rawBody []byte) (service.Admission, error)
}

func (s *stubGateway) Admit(ctx context.Context, meta service.RequestMeta, rawBody []byte) (service.Admission, error) {
	if s.admitFn != nil {
		return s.admitFn(ctx, meta, rawBody)
	}
	return service.AdmissionAccepted, nil
}

type stubSweeper struct {
	sweepFn func(ctx context.Context) error
}

func (s *stubSweeper) Sweep(ctx context.Context) error {
	if s.sweepFn != nil {
		return s.sweepFn(ctx)
	}
	return nil
}

type stubReprocessor struct {
	processFn func(ctx context.Context, input service.ProcessInput) (domain.AttemptOutcome, error)
}

func (s *stubReprocessor) Process(ctx context.Context, input service.ProcessInput) (domain.AttemptOutcome, error) {
	if s.processFn != nil {
		return s.processFn(ctx, input)
	}
	return domain.OutcomeSuccess, nil
}

type stubStats struct{}

func (s *stubStats) Collect(_ context.Context, days int) (*service.Statistics, error) {
	if days <= 0 {
		days = 30
	}
	return &service.Statistics{
		WindowDays:  days,
		TotalEvents: 7,
		ByOutcome:   map[string]int64{"success": 6, "failed": 1},
		ByType:      map[string]int64{"webhooks.test": 7},
		ByDay:       map[string]int64{"2024-03-01": 7},
	}, nil
}

type stubHealth struct{}

func (s *stubHealth) Snapshot(context.Context) service.HealthSnapshot {
	return service.HealthSnapshot{Status: "ok", MaxRetries: 3}
}

type stubEventRepo struct {
	listFn func(ctx context.Context, params repository.EventListParams) ([]domain.NotificationEvent, error)
}

func (s *stubEventRepo) Create(context.Context, *domain.NotificationEvent) (bool, error) {
	return true, nil
}

func (s *stubEventRepo) GetByNotificationID(context.Context, string) (*domain.NotificationEvent, error) {
	return nil, domain.ErrNotFound
}

func (s *stubEventRepo) List(ctx context.Context, params repository.EventListParams) ([]domain.NotificationEvent, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *stubEventRepo) CountSince(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *stubEventRepo) CountByTypeSince(context.Context, time.Time) ([]repository.TypeCount, error) {
	return nil, nil
}

func (s *stubEventRepo) CountByDaySince(context.Context, time.Time) ([]repository.DayCount, error) {
	return nil, nil
}

type stubAttemptRepo struct {
	listFn func(ctx context.Context, params repository.AttemptListParams) ([]domain.DeliveryAttempt, error)
}

func (s *stubAttemptRepo) Create(context.Context, *domain.DeliveryAttempt) error { return nil }

func (s *stubAttemptRepo) CountByNotificationID(context.Context, string) (int64, error) {
	return 0, nil
}

func (s *stubAttemptRepo) List(ctx context.Context, params repository.AttemptListParams) ([]domain.DeliveryAttempt, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *stubAttemptRepo) ListRetryCandidates(context.Context, int, int) ([]domain.DeliveryAttempt, error) {
	return nil, nil
}

func (s *stubAttemptRepo) CountByOutcomeSince(context.Context, time.Time) ([]repository.OutcomeCount, error) {
	return nil, nil
}

type stubSignatureRepo struct{}

func (s *stubSignatureRepo) Create(context.Context, *domain.SignatureRecord) error { return nil }

func (s *stubSignatureRepo) List(context.Context, repository.SignatureListParams) ([]domain.SignatureRecord, error) {
	return nil, nil
}

type stubRequestLogRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.RequestLog, error)
}

func (s *stubRequestLogRepo) Create(context.Context, *domain.RequestLog) error { return nil }

func (s *stubRequestLogRepo) GetByID(ctx context.Context, id string) (*domain.RequestLog, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubRequestLogRepo) List(context.Context, int) ([]domain.RequestLog, error) {
	return []domain.RequestLog{{ID: "log-1", Status: "accepted"}}, nil
}

type handlerStubs struct {
	gateway     *stubGateway
	sweeper     *stubSweeper
	reprocessor *stubReprocessor
	events      *stubEventRepo
	attempts    *stubAttemptRepo
	requestLogs repository.RequestLogRepository
}

func newWebhookTestApp(t *testing.T, stubs handlerStubs) *fiber.App {
	t.Helper()

	if stubs.gateway == nil {
		stubs.gateway = &stubGateway{}
	}
	if stubs.sweeper == nil {
		stubs.sweeper = &stubSweeper{}
	}
	if stubs.reprocessor == nil {
		stubs.reprocessor = &stubReprocessor{}
	}
	if stubs.events == nil {
		stubs.events = &stubEventRepo{}
	}
	if stubs.attempts == nil {
		stubs.attempts = &stubAttemptRepo{}
	}

	h, err := NewWebhookHandler(
		stubs.gateway,
		stubs.sweeper,
		stubs.reprocessor,
		&stubStats{},
		&stubHealth{},
		stubs.events,
		stubs.attempts,
		&stubSignatureRepo{},
		stubs.requestLogs,
		ConfigEcho{MaxRetries: 3, RetryDelaySeconds: 60},
	)
	if err != nil {
		t.Fatalf("NewWebhookHandler() error = %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	RegisterWebhookRoutes(app, h)
	return app
}

func performRequest(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()
	return resp, respBody
}

func TestWebhookReceiveAccepted(t *testing.T) {
	t.Parallel()

	var gotMeta service.RequestMeta
	var gotBody []byte
	gateway := &stubGateway{
		admitFn: func(_ context.Context, meta service.RequestMeta, rawBody []byte) (service.Admission, error) {
			gotMeta = meta
			gotBody = rawBody
			return service.AdmissionAccepted, nil
		},
	}

	app := newWebhookTestApp(t, handlerStubs{gateway: gateway})

	body := `{"notificationId":"n1","notificationType":"webhooks.test"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/webhooks/circle", body, map[string]string{
		"Circle-Signature": "c2lnbmF0dXJl",
		"Circle-Timestamp": "2024-03-01T10:00:00Z",
		"X-Forwarded-For":  "203.0.113.7",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["status"] != "accepted" {
		t.Fatalf("status = %v, want accepted", parsed["status"])
	}

	if string(gotBody) != body {
		t.Fatalf("gateway body = %s, want the raw request body", gotBody)
	}
	if gotMeta.Signature != "c2lnbmF0dXJl" {
		t.Fatalf("signature = %q", gotMeta.Signature)
	}
	if gotMeta.Timestamp != "2024-03-01T10:00:00Z" {
		t.Fatalf("timestamp = %q", gotMeta.Timestamp)
	}
	if gotMeta.ForwardedFor != "203.0.113.7" {
		t.Fatalf("forwarded-for = %q", gotMeta.ForwardedFor)
	}
}

func TestWebhookReceiveRejectedIP(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		admitFn: func(context.Context, service.RequestMeta, []byte) (service.Admission, error) {
			return service.AdmissionRejected, fmt.Errorf("%w: 10.0.0.1", domain.ErrUnauthorizedIP)
		},
	}

	app := newWebhookTestApp(t, handlerStubs{gateway: gateway})

	resp, _ := performRequest(t, app, http.MethodPost, "/webhooks/circle", `{}`, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestWebhookReceiveMalformedBody(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		admitFn: func(context.Context, service.RequestMeta, []byte) (service.Admission, error) {
			return service.AdmissionRejected, fmt.Errorf("%w: malformed notification envelope", domain.ErrValidation)
		},
	}

	app := newWebhookTestApp(t, handlerStubs{gateway: gateway})

	resp, _ := performRequest(t, app, http.MethodPost, "/webhooks/circle", `{not json`, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookPing(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, handlerStubs{})

	resp, _ := performRequest(t, app, http.MethodHead, "/webhooks/", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebhookListEventsFilter(t *testing.T) {
	t.Parallel()

	events := &stubEventRepo{
		listFn: func(_ context.Context, params repository.EventListParams) ([]domain.NotificationEvent, error) {
			if params.NotificationType == nil || *params.NotificationType != "webhooks.test" {
				t.Fatalf("type filter = %v, want webhooks.test", params.NotificationType)
			}
			if params.Limit != 10 {
				t.Fatalf("limit = %d, want 10", params.Limit)
			}
			return []domain.NotificationEvent{
				{ID: "e1", NotificationID: "n1", NotificationType: "webhooks.test", Payload: []byte(`{}`)},
			}, nil
		},
	}

	app := newWebhookTestApp(t, handlerStubs{events: events})

	resp, body := performRequest(t, app, http.MethodGet, "/webhooks/events?type=webhooks.test&limit=10", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Count != 1 {
		t.Fatalf("count = %d, want 1", parsed.Count)
	}
}

func TestWebhookListAttemptsInvalidOutcome(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, handlerStubs{})

	resp, _ := performRequest(t, app, http.MethodGet, "/webhooks/attempts?outcome=bogus", "", nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookStatistics(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, handlerStubs{})

	resp, body := performRequest(t, app, http.MethodGet, "/webhooks/statistics?days=7", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var parsed service.Statistics
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.WindowDays != 7 || parsed.TotalEvents != 7 {
		t.Fatalf("unexpected statistics: %+v", parsed)
	}
}

func TestWebhookRetryTriggersSweep(t *testing.T) {
	t.Parallel()

	swept := false
	sweeper := &stubSweeper{
		sweepFn: func(context.Context) error {
			swept = true
			return nil
		},
	}

	app := newWebhookTestApp(t, handlerStubs{sweeper: sweeper})

	resp, _ := performRequest(t, app, http.MethodPost, "/webhooks/retry", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !swept {
		t.Fatal("retry endpoint should trigger a sweep")
	}
}

func TestWebhookConfigEcho(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, handlerStubs{})

	resp, body := performRequest(t, app, http.MethodGet, "/webhooks/config", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var parsed ConfigEcho
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.MaxRetries != 3 || parsed.RetryDelaySeconds != 60 {
		t.Fatalf("unexpected config echo: %+v", parsed)
	}
}

func TestWebhookRequestLogsDisabled(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, handlerStubs{})

	resp, _ := performRequest(t, app, http.MethodGet, "/webhook-logs/", "", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 when logging is disabled", resp.StatusCode)
	}
}

func TestWebhookRequestLogResend(t *testing.T) {
	t.Parallel()

	storedBody := `{"notificationId":"n1","notificationType":"webhooks.test"}`
	requestLogs := &stubRequestLogRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.RequestLog, error) {
			if id != "log-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.RequestLog{ID: "log-1", Payload: []byte(storedBody)}, nil
		},
	}

	var reprocessed []byte
	reprocessor := &stubReprocessor{
		processFn: func(_ context.Context, input service.ProcessInput) (domain.AttemptOutcome, error) {
			reprocessed = input.RawBody
			return domain.OutcomeSuccess, nil
		},
	}

	app := newWebhookTestApp(t, handlerStubs{requestLogs: requestLogs, reprocessor: reprocessor})

	resp, body := performRequest(t, app, http.MethodPost, "/webhook-logs/log-1/resend", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if string(reprocessed) != storedBody {
		t.Fatal("resend should replay the logged payload")
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/webhook-logs/missing/resend", "", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown log id", resp.StatusCode)
	}
}
