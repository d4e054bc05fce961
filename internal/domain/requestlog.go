package domain

import (
	"encoding/json"
	"time"
)

// RequestLog is one verbose per-request audit row, written for every inbound
// webhook request when request logging is enabled.
type RequestLog struct {
	ID             string
	NotificationID string
	EventType      string
	Payload        json.RawMessage
	Status         string
	ErrorDetail    *string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}
