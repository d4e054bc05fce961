package service

import (
	"context"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"go.uber.org/zap"
)

// route applies the domain side effect for one stored notification. Unknown
// kinds are a logged no-op so provider-added types flow through storage and
// forwarding untouched.
func (p *Processor) route(ctx context.Context, logger *zap.Logger, env domain.InboundNotification) error {
	switch domain.ParseNotificationType(env.NotificationType) {
	case domain.TypeTransactionStatus:
		return p.handleTransactionStatus(ctx, logger, env)
	case domain.TypeWalletBalance:
		return p.handleWalletBalance(ctx, logger, env)
	case domain.TypeWalletCreated:
		logger.Info("wallet created notification received")
		return nil
	case domain.TypeWebhookTest:
		logger.Info("connectivity test notification received")
		return nil
	case domain.TypeUnknown:
		logger.Warn("unhandled notification type",
			zap.String("notificationType", env.NotificationType),
		)
		return nil
	}
	return nil
}
