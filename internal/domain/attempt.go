package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AttemptOutcome represents the result of one full processing pass.
type AttemptOutcome string

const (
	OutcomeSuccess        AttemptOutcome = "success"
	OutcomeFailed         AttemptOutcome = "failed"
	OutcomeRetryScheduled AttemptOutcome = "retry_scheduled"
)

func (o AttemptOutcome) String() string { return string(o) }

func (o AttemptOutcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeRetryScheduled:
		return true
	}
	return false
}

func ParseAttemptOutcome(s string) (AttemptOutcome, error) {
	o := AttemptOutcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt outcome %q", ErrValidation, s)
	}
	return o, nil
}

// DeliveryAttempt records one try at fully processing and forwarding a
// notification. AttemptNumber is an append-only 1-based counter per
// notification id, never reused.
type DeliveryAttempt struct {
	ID              string
	NotificationID  string
	AttemptNumber   int
	Outcome         AttemptOutcome
	ErrorDetail     *string
	PayloadSnapshot json.RawMessage
	CreatedAt       time.Time
}
