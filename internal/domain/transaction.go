package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransactionStatus is the lifecycle state of a provider transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionConfirmed TransactionStatus = "CONFIRMED"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

func (s TransactionStatus) String() string { return string(s) }

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionConfirmed, TransactionCompleted, TransactionFailed:
		return true
	}
	return false
}

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	st := TransactionStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid transaction status %q", ErrValidation, s)
	}
	return st, nil
}

// Transaction is the downstream view of a provider transaction. Transactions
// are created by the initiating action, never by a webhook.
type Transaction struct {
	ID            string
	Status        TransactionStatus
	TxHash        *string
	Confirmations *int
	Blockchain    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Balance is the current amount for one (wallet, token, blockchain) key.
// Updates are last-write-wins; no aggregation across stale and fresh values.
type Balance struct {
	ID         string
	WalletID   string
	TokenID    string
	Blockchain string
	Amount     string
	UpdatedAt  time.Time
}

func (b *Balance) Validate() error {
	if strings.TrimSpace(b.WalletID) == "" {
		return fmt.Errorf("%w: wallet id is required", ErrValidation)
	}
	if strings.TrimSpace(b.TokenID) == "" {
		return fmt.Errorf("%w: token id is required", ErrValidation)
	}
	if strings.TrimSpace(b.Blockchain) == "" {
		return fmt.Errorf("%w: blockchain is required", ErrValidation)
	}
	if strings.TrimSpace(b.Amount) == "" {
		return fmt.Errorf("%w: amount is required", ErrValidation)
	}
	return nil
}
