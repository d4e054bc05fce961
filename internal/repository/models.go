package repository

import (
	"encoding/json"
	"time"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"gorm.io/datatypes"
)

// EventModel is the persistence model for the webhook_events table.
type EventModel struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	SubscriptionID   string         `gorm:"type:varchar(64)"`
	NotificationID   string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_webhook_events_notification_id"`
	NotificationType string         `gorm:"type:varchar(64);not null"`
	Payload          datatypes.JSON `gorm:"type:jsonb;not null"`
	OccurredAt       time.Time      `gorm:"type:timestamptz;not null"`
	SchemaVersion    int            `gorm:"not null;default:1"`
	ReceivedAt       time.Time      `gorm:"type:timestamptz;not null"`
}

func (EventModel) TableName() string {
	return "webhook_events"
}

// AttemptModel is the persistence model for delivery_attempts.
type AttemptModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	NotificationID  string                `gorm:"type:varchar(128);not null"`
	AttemptNumber   int                   `gorm:"not null"`
	Outcome         domain.AttemptOutcome `gorm:"type:varchar(20);not null"`
	ErrorDetail     *string               `gorm:"type:text"`
	PayloadSnapshot datatypes.JSON        `gorm:"type:jsonb"`
	CreatedAt       time.Time             `gorm:"type:timestamptz;not null"`
}

func (AttemptModel) TableName() string {
	return "delivery_attempts"
}

// SignatureModel is the persistence model for signature_records.
type SignatureModel struct {
	ID             string                    `gorm:"type:uuid;primaryKey"`
	NotificationID string                    `gorm:"type:varchar(128);not null;uniqueIndex:idx_signature_records_notification_id"`
	Signature      string                    `gorm:"type:text;not null"`
	Timestamp      string                    `gorm:"type:varchar(64);not null"`
	Status         domain.VerificationStatus `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time                 `gorm:"type:timestamptz;not null"`
}

func (SignatureModel) TableName() string {
	return "signature_records"
}

// TransactionModel is the persistence model for transactions. The primary
// key is the provider-assigned transaction id.
type TransactionModel struct {
	ID            string                   `gorm:"type:varchar(128);primaryKey"`
	Status        domain.TransactionStatus `gorm:"type:varchar(20);not null"`
	TxHash        *string                  `gorm:"type:varchar(128)"`
	Confirmations *int                     `gorm:"type:int"`
	Blockchain    string                   `gorm:"type:varchar(32)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (TransactionModel) TableName() string {
	return "transactions"
}

// BalanceModel is the persistence model for wallet_balances, keyed by
// (wallet, token, blockchain).
type BalanceModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	WalletID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_wallet_balances_key"`
	TokenID    string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_wallet_balances_key"`
	Blockchain string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_wallet_balances_key"`
	Amount     string    `gorm:"type:varchar(80);not null"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;not null"`
}

func (BalanceModel) TableName() string {
	return "wallet_balances"
}

// RequestLogModel is the persistence model for webhook_request_logs.
type RequestLogModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	NotificationID string         `gorm:"type:varchar(128);not null"`
	EventType      string         `gorm:"type:varchar(64)"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	Status         string         `gorm:"type:varchar(20);not null"`
	ErrorDetail    *string        `gorm:"type:text"`
	ProcessedAt    *time.Time     `gorm:"type:timestamptz"`
	CreatedAt      time.Time      `gorm:"type:timestamptz;not null"`
}

func (RequestLogModel) TableName() string {
	return "webhook_request_logs"
}

func eventModelFromDomain(e *domain.NotificationEvent) *EventModel {
	if e == nil {
		return nil
	}
	return &EventModel{
		ID:               e.ID,
		SubscriptionID:   e.SubscriptionID,
		NotificationID:   e.NotificationID,
		NotificationType: e.NotificationType,
		Payload:          datatypes.JSON(e.Payload),
		OccurredAt:       e.OccurredAt,
		SchemaVersion:    e.SchemaVersion,
		ReceivedAt:       e.ReceivedAt,
	}
}

func eventModelToDomain(m *EventModel) *domain.NotificationEvent {
	if m == nil {
		return nil
	}
	return &domain.NotificationEvent{
		ID:               m.ID,
		SubscriptionID:   m.SubscriptionID,
		NotificationID:   m.NotificationID,
		NotificationType: m.NotificationType,
		Payload:          json.RawMessage(m.Payload),
		OccurredAt:       m.OccurredAt,
		SchemaVersion:    m.SchemaVersion,
		ReceivedAt:       m.ReceivedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *AttemptModel {
	if a == nil {
		return nil
	}
	return &AttemptModel{
		ID:              a.ID,
		NotificationID:  a.NotificationID,
		AttemptNumber:   a.AttemptNumber,
		Outcome:         a.Outcome,
		ErrorDetail:     a.ErrorDetail,
		PayloadSnapshot: datatypes.JSON(a.PayloadSnapshot),
		CreatedAt:       a.CreatedAt,
	}
}

func attemptModelToDomain(m *AttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}
	return &domain.DeliveryAttempt{
		ID:              m.ID,
		NotificationID:  m.NotificationID,
		AttemptNumber:   m.AttemptNumber,
		Outcome:         m.Outcome,
		ErrorDetail:     m.ErrorDetail,
		PayloadSnapshot: json.RawMessage(m.PayloadSnapshot),
		CreatedAt:       m.CreatedAt,
	}
}

func signatureModelFromDomain(s *domain.SignatureRecord) *SignatureModel {
	if s == nil {
		return nil
	}
	return &SignatureModel{
		ID:             s.ID,
		NotificationID: s.NotificationID,
		Signature:      s.Signature,
		Timestamp:      s.Timestamp,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
	}
}

func signatureModelToDomain(m *SignatureModel) *domain.SignatureRecord {
	if m == nil {
		return nil
	}
	return &domain.SignatureRecord{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Signature:      m.Signature,
		Timestamp:      m.Timestamp,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}

func transactionModelToDomain(m *TransactionModel) *domain.Transaction {
	if m == nil {
		return nil
	}
	return &domain.Transaction{
		ID:            m.ID,
		Status:        m.Status,
		TxHash:        m.TxHash,
		Confirmations: m.Confirmations,
		Blockchain:    m.Blockchain,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func balanceModelFromDomain(b *domain.Balance) *BalanceModel {
	if b == nil {
		return nil
	}
	return &BalanceModel{
		ID:         b.ID,
		WalletID:   b.WalletID,
		TokenID:    b.TokenID,
		Blockchain: b.Blockchain,
		Amount:     b.Amount,
		UpdatedAt:  b.UpdatedAt,
	}
}

func requestLogModelFromDomain(l *domain.RequestLog) *RequestLogModel {
	if l == nil {
		return nil
	}
	return &RequestLogModel{
		ID:             l.ID,
		NotificationID: l.NotificationID,
		EventType:      l.EventType,
		Payload:        datatypes.JSON(l.Payload),
		Status:         l.Status,
		ErrorDetail:    l.ErrorDetail,
		ProcessedAt:    l.ProcessedAt,
		CreatedAt:      l.CreatedAt,
	}
}

func requestLogModelToDomain(m *RequestLogModel) *domain.RequestLog {
	if m == nil {
		return nil
	}
	return &domain.RequestLog{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		EventType:      m.EventType,
		Payload:        json.RawMessage(m.Payload),
		Status:         m.Status,
		ErrorDetail:    m.ErrorDetail,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
	}
}
