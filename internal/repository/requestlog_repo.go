package repository

import (
	"context"
	"errors"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/gorm"
)

type RequestLogRepository interface {
	Create(ctx context.Context, l *domain.RequestLog) error
	GetByID(ctx context.Context, id string) (*domain.RequestLog, error)
	List(ctx context.Context, limit int) ([]domain.RequestLog, error)
}

type GormRequestLogRepo struct {
	db *gorm.DB
}

func NewGormRequestLogRepo(db *gorm.DB) *GormRequestLogRepo {
	return &GormRequestLogRepo{db: db}
}

func (r *GormRequestLogRepo) Create(ctx context.Context, l *domain.RequestLog) error {
	return r.db.WithContext(ctx).Create(requestLogModelFromDomain(l)).Error
}

func (r *GormRequestLogRepo) GetByID(ctx context.Context, id string) (*domain.RequestLog, error) {
	var model RequestLogModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return requestLogModelToDomain(&model), nil
}

func (r *GormRequestLogRepo) List(ctx context.Context, limit int) ([]domain.RequestLog, error) {
	if limit < 1 {
		limit = 100
	}

	var models []RequestLogModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	logs := make([]domain.RequestLog, 0, len(models))
	for i := range models {
		logs = append(logs, *requestLogModelToDomain(&models[i]))
	}
	return logs, nil
}
