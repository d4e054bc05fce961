package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventListParams struct {
	NotificationType *string
	Limit            int
}

// TypeCount is a per-notification-type event tally.
type TypeCount struct {
	NotificationType string `gorm:"column:notification_type"`
	Count            int64  `gorm:"column:count"`
}

// DayCount is a per-day event tally.
type DayCount struct {
	Day   string `gorm:"column:day"`
	Count int64  `gorm:"column:count"`
}

type EventRepository interface {
	// Create inserts the event, ignoring duplicate notification ids.
	// The returned bool reports whether a new row was written.
	Create(ctx context.Context, e *domain.NotificationEvent) (bool, error)
	GetByNotificationID(ctx context.Context, notificationID string) (*domain.NotificationEvent, error)
	List(ctx context.Context, params EventListParams) ([]domain.NotificationEvent, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountByTypeSince(ctx context.Context, since time.Time) ([]TypeCount, error)
	CountByDaySince(ctx context.Context, since time.Time) ([]DayCount, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) Create(ctx context.Context, e *domain.NotificationEvent) (bool, error) {
	model := eventModelFromDomain(e)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	// RowsAffected == 0 means a redelivery hit the unique index; the
	// original event is untouched.
	return result.RowsAffected > 0, nil
}

func (r *GormEventRepo) GetByNotificationID(ctx context.Context, notificationID string) (*domain.NotificationEvent, error) {
	var model EventModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return eventModelToDomain(&model), nil
}

func (r *GormEventRepo) List(ctx context.Context, params EventListParams) ([]domain.NotificationEvent, error) {
	query := r.db.WithContext(ctx).Model(&EventModel{})

	if params.NotificationType != nil {
		query = query.Where("notification_type = ?", *params.NotificationType)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	var models []EventModel
	err := query.
		Order("received_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.NotificationEvent, 0, len(models))
	for i := range models {
		events = append(events, *eventModelToDomain(&models[i]))
	}
	return events, nil
}

func (r *GormEventRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&EventModel{}).
		Where("received_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *GormEventRepo) CountByTypeSince(ctx context.Context, since time.Time) ([]TypeCount, error) {
	var counts []TypeCount
	err := r.db.WithContext(ctx).
		Model(&EventModel{}).
		Select("notification_type, COUNT(*) as count").
		Where("received_at >= ?", since).
		Group("notification_type").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormEventRepo) CountByDaySince(ctx context.Context, since time.Time) ([]DayCount, error) {
	var counts []DayCount
	err := r.db.WithContext(ctx).
		Model(&EventModel{}).
		Select("to_char(received_at, 'YYYY-MM-DD') as day, COUNT(*) as count").
		Where("received_at >= ?", since).
		Group("day").
		Order("day ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
