package domain

import (
	"fmt"
	"strings"
	"time"
)

// VerificationStatus is the audited outcome of a signature check.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
	// VerificationSkipped marks events accepted without a configured
	// signing secret.
	VerificationSkipped VerificationStatus = "skipped"
)

func (s VerificationStatus) String() string { return string(s) }

func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationVerified, VerificationFailed, VerificationSkipped:
		return true
	}
	return false
}

func ParseVerificationStatus(s string) (VerificationStatus, error) {
	st := VerificationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid verification status %q", ErrValidation, s)
	}
	return st, nil
}

// SignatureRecord audits one verification decision. One record per inbound
// request that carried a signature header; never mutated.
type SignatureRecord struct {
	ID             string
	NotificationID string
	Signature      string
	Timestamp      string
	Status         VerificationStatus
	CreatedAt      time.Time
}
