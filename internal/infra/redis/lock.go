package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexuspay/webhook-relay/internal/lock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	claimKeyPrefix  = "webhook:claim:"
	defaultClaimTTL = 30 * time.Second
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*NotificationLocker)(nil)

// NotificationLocker is a distributed claim lock backed by Redis. The TTL
// bounds how long a crashed holder can block a notification id.
type NotificationLocker struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewNotificationLocker(client *goredis.Client, ttl time.Duration, logger *zap.Logger) (*NotificationLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationLocker{client: client, ttl: ttl, logger: logger}, nil
}

func (l *NotificationLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	if l == nil || l.client == nil {
		return nil, false, fmt.Errorf("notification locker is not initialized")
	}

	normalized := strings.TrimSpace(key)
	if normalized == "" {
		return nil, false, fmt.Errorf("lock key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	redisKey := claimKeyPrefix + normalized
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire claim: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// The release context is independent of the request context so a
		// cancelled request still frees its claim.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release claim",
				zap.String("key", redisKey),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}
