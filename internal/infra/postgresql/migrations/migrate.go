package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_webhook_events",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.EventModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_webhook_events_type_received ON webhook_events (notification_type, received_at)`,
					`CREATE INDEX IF NOT EXISTS idx_webhook_events_received_at ON webhook_events (received_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.EventModel{})
			},
		},
		{
			ID: "000002_create_delivery_attempts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.AttemptModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_notification_id ON delivery_attempts (notification_id, attempt_number DESC)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.AttemptModel{})
			},
		},
		{
			ID: "000003_create_signature_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SignatureModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SignatureModel{})
			},
		},
		{
			ID: "000004_create_transactions_and_balances",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.TransactionModel{}, &repository.BalanceModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.TransactionModel{}, &repository.BalanceModel{})
			},
		},
		{
			ID: "000005_create_webhook_request_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.RequestLogModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_request_logs_created_at ON webhook_request_logs (created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.RequestLogModel{})
			},
		},
	})

	return m.Migrate()
}
