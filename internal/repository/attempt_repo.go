package repository

import (
	"context"
	"time"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/gorm"
)

type AttemptListParams struct {
	Outcome *domain.AttemptOutcome
	Limit   int
}

// OutcomeCount is a per-outcome attempt tally.
type OutcomeCount struct {
	Outcome domain.AttemptOutcome `gorm:"column:outcome"`
	Count   int64                 `gorm:"column:count"`
}

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	CountByNotificationID(ctx context.Context, notificationID string) (int64, error)
	List(ctx context.Context, params AttemptListParams) ([]domain.DeliveryAttempt, error)
	// ListRetryCandidates returns the latest attempt per notification id
	// where that attempt failed below the retry ceiling.
	ListRetryCandidates(ctx context.Context, maxRetries int, limit int) ([]domain.DeliveryAttempt, error)
	CountByOutcomeSince(ctx context.Context, since time.Time) ([]OutcomeCount, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) CountByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Where("notification_id = ?", notificationID).
		Count(&count).Error
	return count, err
}

func (r *GormAttemptRepo) List(ctx context.Context, params AttemptListParams) ([]domain.DeliveryAttempt, error) {
	query := r.db.WithContext(ctx).Model(&AttemptModel{})

	if params.Outcome != nil {
		query = query.Where("outcome = ?", *params.Outcome)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	var models []AttemptModel
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts, nil
}

func (r *GormAttemptRepo) ListRetryCandidates(ctx context.Context, maxRetries int, limit int) ([]domain.DeliveryAttempt, error) {
	if limit < 1 {
		limit = 100
	}

	// Only the newest attempt per id counts: a success or an exhausted
	// ceiling parks the notification even if earlier attempts failed.
	var models []AttemptModel
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM (
			SELECT DISTINCT ON (notification_id) *
			FROM delivery_attempts
			ORDER BY notification_id, attempt_number DESC
		) latest
		WHERE latest.outcome = ? AND latest.attempt_number < ?
		ORDER BY latest.created_at ASC
		LIMIT ?`, domain.OutcomeFailed, maxRetries, limit).
		Scan(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts, nil
}

func (r *GormAttemptRepo) CountByOutcomeSince(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	var counts []OutcomeCount
	err := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Select("outcome, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("outcome").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
