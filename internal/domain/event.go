package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies an inbound provider notification. Kinds the
// provider adds after this build are mapped to TypeUnknown rather than
// rejected, so they are still stored and auditable.
type NotificationType string

const (
	TypeTransactionStatus NotificationType = "transaction.status.updated"
	TypeWalletBalance     NotificationType = "wallet.balance.updated"
	TypeWalletCreated     NotificationType = "wallet.created"
	TypeWebhookTest       NotificationType = "webhooks.test"
	TypeUnknown           NotificationType = "unknown"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeTransactionStatus, TypeWalletBalance, TypeWalletCreated, TypeWebhookTest, TypeUnknown:
		return true
	}
	return false
}

// ParseNotificationType never fails. Anything outside the known set comes
// back as TypeUnknown.
func ParseNotificationType(s string) NotificationType {
	t := NotificationType(strings.TrimSpace(s))
	switch t {
	case TypeTransactionStatus, TypeWalletBalance, TypeWalletCreated, TypeWebhookTest:
		return t
	}
	return TypeUnknown
}

// InboundNotification is the provider envelope as received on the wire.
// Notification holds the type-specific body untouched.
type InboundNotification struct {
	SubscriptionID   string          `json:"subscriptionId"`
	NotificationID   string          `json:"notificationId"`
	NotificationType string          `json:"notificationType"`
	Notification     json.RawMessage `json:"notification"`
	Timestamp        string          `json:"timestamp"`
	Version          int             `json:"version"`
}

func ParseEnvelope(raw []byte) (InboundNotification, error) {
	var env InboundNotification
	if err := json.Unmarshal(raw, &env); err != nil {
		return InboundNotification{}, fmt.Errorf("%w: malformed notification envelope: %v", ErrValidation, err)
	}
	return env, nil
}

func (n InboundNotification) Validate() error {
	if strings.TrimSpace(n.NotificationID) == "" {
		return fmt.Errorf("%w: notificationId is required", ErrValidation)
	}
	if strings.TrimSpace(n.NotificationType) == "" {
		return fmt.Errorf("%w: notificationType is required", ErrValidation)
	}
	return nil
}

// OccurredAt returns the provider timestamp, or fallback when the field is
// missing or not RFC 3339.
func (n InboundNotification) OccurredAt(fallback time.Time) time.Time {
	if n.Timestamp == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339, n.Timestamp)
	if err != nil {
		return fallback
	}
	return ts
}

// NotificationEvent is the stored form of a notification. Payload carries
// the complete raw envelope bytes so retries and forwarding replay the
// sender's exact serialization.
type NotificationEvent struct {
	ID               string
	SubscriptionID   string
	NotificationID   string
	NotificationType string
	Payload          json.RawMessage
	OccurredAt       time.Time
	SchemaVersion    int
	ReceivedAt       time.Time
}

func (e NotificationEvent) Validate() error {
	if strings.TrimSpace(e.NotificationID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	if strings.TrimSpace(e.NotificationType) == "" {
		return fmt.Errorf("%w: notification type is required", ErrValidation)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", ErrValidation)
	}
	return nil
}
