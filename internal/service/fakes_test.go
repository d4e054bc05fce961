package service

import (
	"context"
	"time"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"github.com/nexuspay/webhook-relay/internal/repository"
)

type fakeEventRepo struct {
	createFn              func(ctx context.Context, e *domain.NotificationEvent) (bool, error)
	getByNotificationIDFn func(ctx context.Context, notificationID string) (*domain.NotificationEvent, error)
	listFn                func(ctx context.Context, params repository.EventListParams) ([]domain.NotificationEvent, error)
	countSinceFn          func(ctx context.Context, since time.Time) (int64, error)
	countByTypeSinceFn    func(ctx context.Context, since time.Time) ([]repository.TypeCount, error)
	countByDaySinceFn     func(ctx context.Context, since time.Time) ([]repository.DayCount, error)
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.NotificationEvent) (bool, error) {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return true, nil
}

func (f *fakeEventRepo) GetByNotificationID(ctx context.Context, notificationID string) (*domain.NotificationEvent, error) {
	if f.getByNotificationIDFn != nil {
		return f.getByNotificationIDFn(ctx, notificationID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) List(ctx context.Context, params repository.EventListParams) ([]domain.NotificationEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeEventRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if f.countSinceFn != nil {
		return f.countSinceFn(ctx, since)
	}
	return 0, nil
}

func (f *fakeEventRepo) CountByTypeSince(ctx context.Context, since time.Time) ([]repository.TypeCount, error) {
	if f.countByTypeSinceFn != nil {
		return f.countByTypeSinceFn(ctx, since)
	}
	return nil, nil
}

func (f *fakeEventRepo) CountByDaySince(ctx context.Context, since time.Time) ([]repository.DayCount, error) {
	if f.countByDaySinceFn != nil {
		return f.countByDaySinceFn(ctx, since)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	createFn                func(ctx context.Context, a *domain.DeliveryAttempt) error
	countByNotificationIDFn func(ctx context.Context, notificationID string) (int64, error)
	listFn                  func(ctx context.Context, params repository.AttemptListParams) ([]domain.DeliveryAttempt, error)
	listRetryCandidatesFn   func(ctx context.Context, maxRetries int, limit int) ([]domain.DeliveryAttempt, error)
	countByOutcomeSinceFn   func(ctx context.Context, since time.Time) ([]repository.OutcomeCount, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) CountByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	if f.countByNotificationIDFn != nil {
		return f.countByNotificationIDFn(ctx, notificationID)
	}
	return 0, nil
}

func (f *fakeAttemptRepo) List(ctx context.Context, params repository.AttemptListParams) ([]domain.DeliveryAttempt, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) ListRetryCandidates(ctx context.Context, maxRetries int, limit int) ([]domain.DeliveryAttempt, error) {
	if f.listRetryCandidatesFn != nil {
		return f.listRetryCandidatesFn(ctx, maxRetries, limit)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) CountByOutcomeSince(ctx context.Context, since time.Time) ([]repository.OutcomeCount, error) {
	if f.countByOutcomeSinceFn != nil {
		return f.countByOutcomeSinceFn(ctx, since)
	}
	return nil, nil
}

type fakeSignatureRepo struct {
	createFn func(ctx context.Context, s *domain.SignatureRecord) error
	listFn   func(ctx context.Context, params repository.SignatureListParams) ([]domain.SignatureRecord, error)
}

func (f *fakeSignatureRepo) Create(ctx context.Context, s *domain.SignatureRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	return nil
}

func (f *fakeSignatureRepo) List(ctx context.Context, params repository.SignatureListParams) ([]domain.SignatureRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

type fakeTransactionRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Transaction, error)
	updateFn  func(ctx context.Context, tx *domain.Transaction) error
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTransactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, tx)
	}
	return nil
}

type fakeBalanceRepo struct {
	upsertFn func(ctx context.Context, b *domain.Balance) error
}

func (f *fakeBalanceRepo) Upsert(ctx context.Context, b *domain.Balance) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, b)
	}
	return nil
}

type fakeRequestLogRepo struct {
	createFn  func(ctx context.Context, l *domain.RequestLog) error
	getByIDFn func(ctx context.Context, id string) (*domain.RequestLog, error)
	listFn    func(ctx context.Context, limit int) ([]domain.RequestLog, error)
}

func (f *fakeRequestLogRepo) Create(ctx context.Context, l *domain.RequestLog) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeRequestLogRepo) GetByID(ctx context.Context, id string) (*domain.RequestLog, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRequestLogRepo) List(ctx context.Context, limit int) ([]domain.RequestLog, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit)
	}
	return nil, nil
}

type fakeForwarder struct {
	enabled   bool
	forwardFn func(ctx context.Context, body []byte) error
	healthFn  func(ctx context.Context) bool
}

func (f *fakeForwarder) Enabled() bool {
	return f.enabled
}

func (f *fakeForwarder) Forward(ctx context.Context, body []byte) error {
	if f.forwardFn != nil {
		return f.forwardFn(ctx, body)
	}
	return nil
}

func (f *fakeForwarder) CheckHealth(ctx context.Context) bool {
	if f.healthFn != nil {
		return f.healthFn(ctx)
	}
	return f.enabled
}

// syncDispatcher runs tasks inline so tests observe pipeline effects without
// goroutine coordination.
type syncDispatcher struct {
	submitErr error
}

func (d *syncDispatcher) Submit(task func(ctx context.Context)) error {
	if d.submitErr != nil {
		return d.submitErr
	}
	task(context.Background())
	return nil
}
