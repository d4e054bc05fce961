package repository

import (
	"context"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SignatureListParams struct {
	Status *domain.VerificationStatus
	Limit  int
}

type SignatureRepository interface {
	Create(ctx context.Context, s *domain.SignatureRecord) error
	List(ctx context.Context, params SignatureListParams) ([]domain.SignatureRecord, error)
}

type GormSignatureRepo struct {
	db *gorm.DB
}

func NewGormSignatureRepo(db *gorm.DB) *GormSignatureRepo {
	return &GormSignatureRepo{db: db}
}

func (r *GormSignatureRepo) Create(ctx context.Context, s *domain.SignatureRecord) error {
	model := signatureModelFromDomain(s)
	// One record per notification id; a redelivered signed request keeps
	// the original verification decision.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(model).Error
}

func (r *GormSignatureRepo) List(ctx context.Context, params SignatureListParams) ([]domain.SignatureRecord, error) {
	query := r.db.WithContext(ctx).Model(&SignatureModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	var models []SignatureModel
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.SignatureRecord, 0, len(models))
	for i := range models {
		records = append(records, *signatureModelToDomain(&models[i]))
	}
	return records, nil
}
