package repository

import (
	"context"
	"errors"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
}

type BalanceRepository interface {
	// Upsert writes the current amount for (wallet, token, blockchain),
	// last-write-wins.
	Upsert(ctx context.Context, b *domain.Balance) error
}

type GormTransactionRepo struct {
	db *gorm.DB
}

func NewGormTransactionRepo(db *gorm.DB) *GormTransactionRepo {
	return &GormTransactionRepo{db: db}
}

func (r *GormTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return transactionModelToDomain(&model), nil
}

func (r *GormTransactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	updates := map[string]any{
		"status":     tx.Status,
		"updated_at": tx.UpdatedAt,
	}
	if tx.TxHash != nil {
		updates["tx_hash"] = *tx.TxHash
	}
	if tx.Confirmations != nil {
		updates["confirmations"] = *tx.Confirmations
	}

	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ?", tx.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type GormBalanceRepo struct {
	db *gorm.DB
}

func NewGormBalanceRepo(db *gorm.DB) *GormBalanceRepo {
	return &GormBalanceRepo{db: db}
}

func (r *GormBalanceRepo) Upsert(ctx context.Context, b *domain.Balance) error {
	if err := b.Validate(); err != nil {
		return err
	}

	model := balanceModelFromDomain(b)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "wallet_id"},
				{Name: "token_id"},
				{Name: "blockchain"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(model).Error
}
