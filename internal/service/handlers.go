package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nexuspay/webhook-relay/internal/domain"
	"go.uber.org/zap"
)

type transactionStatusPayload struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash"`
	Confirmations *int   `json:"confirmations"`
}

type balanceEntry struct {
	TokenID    string `json:"tokenId"`
	Amount     string `json:"amount"`
	Blockchain string `json:"blockchain"`
}

type balancePayload struct {
	WalletID string         `json:"walletId"`
	Balances []balanceEntry `json:"balances"`
}

// handleTransactionStatus overwrites the status of a known transaction.
// Malformed or incomplete bodies and unknown transaction ids are warnings,
// not pipeline failures.
func (p *Processor) handleTransactionStatus(ctx context.Context, logger *zap.Logger, env domain.InboundNotification) error {
	var payload transactionStatusPayload
	if err := json.Unmarshal(env.Notification, &payload); err != nil {
		logger.Warn("malformed transaction status notification", zap.Error(err))
		return nil
	}
	if payload.TransactionID == "" || payload.Status == "" {
		logger.Warn("transaction status notification missing required fields",
			zap.String("transactionId", payload.TransactionID),
		)
		return nil
	}

	status, err := domain.ParseTransactionStatus(payload.Status)
	if err != nil {
		logger.Warn("unrecognized transaction status",
			zap.String("transactionId", payload.TransactionID),
			zap.String("status", payload.Status),
		)
		return nil
	}

	existing, err := p.transactions.GetByID(ctx, payload.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Transactions are created by the initiating action, never
			// from a webhook.
			logger.Warn("transaction not found for status update",
				zap.String("transactionId", payload.TransactionID),
			)
			return nil
		}
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	update := &domain.Transaction{
		ID:        payload.TransactionID,
		Status:    status,
		UpdatedAt: p.now(),
	}
	if payload.TxHash != "" {
		update.TxHash = &payload.TxHash
	}
	if payload.Confirmations != nil {
		update.Confirmations = payload.Confirmations
	}

	if err := p.transactions.Update(ctx, update); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	logger.Info("transaction_status_updated",
		zap.String("transactionId", payload.TransactionID),
		zap.String("oldStatus", existing.Status.String()),
		zap.String("newStatus", status.String()),
	)
	return nil
}

// handleWalletBalance upserts every balance entry, last write wins per
// (wallet, token, blockchain) key.
func (p *Processor) handleWalletBalance(ctx context.Context, logger *zap.Logger, env domain.InboundNotification) error {
	var payload balancePayload
	if err := json.Unmarshal(env.Notification, &payload); err != nil {
		logger.Warn("malformed wallet balance notification", zap.Error(err))
		return nil
	}
	if payload.WalletID == "" || len(payload.Balances) == 0 {
		logger.Warn("wallet balance notification missing required fields",
			zap.String("walletId", payload.WalletID),
		)
		return nil
	}

	for _, entry := range payload.Balances {
		balance := &domain.Balance{
			ID:         uuid.NewString(),
			WalletID:   payload.WalletID,
			TokenID:    entry.TokenID,
			Blockchain: entry.Blockchain,
			Amount:     entry.Amount,
			UpdatedAt:  p.now(),
		}
		if err := balance.Validate(); err != nil {
			logger.Warn("skipping invalid balance entry",
				zap.String("walletId", payload.WalletID),
				zap.String("tokenId", entry.TokenID),
				zap.Error(err),
			)
			continue
		}

		if err := p.balances.Upsert(ctx, balance); err != nil {
			return fmt.Errorf("failed to upsert balance: %w", err)
		}
	}

	logger.Info("wallet_balance_updated",
		zap.String("walletId", payload.WalletID),
		zap.Int("entries", len(payload.Balances)),
	)
	return nil
}
