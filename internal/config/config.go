package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN        string `env:"DATABASE_DSN,required=true"`
	RedisURL           string `env:"REDIS_URL,required=true"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`
	TimeoutSeconds     int    `env:"TIMEOUT_SECONDS,default=5"`
	MaxRetries         int    `env:"MAX_RETRIES,default=3"`
	RetryDelaySeconds  int    `env:"RETRY_DELAY_SECONDS,default=60"`
	RetrySweepSeconds  int    `env:"RETRY_SWEEP_SECONDS,default=300"`
	HealthCheckSeconds int    `env:"HEALTH_CHECK_SECONDS,default=60"`
	AllowedIPs         string `env:"ALLOWED_IPS"`
	SubscribedEvents   string `env:"SUBSCRIBED_EVENTS"`
	DownstreamURL      string `env:"DOWNSTREAM_URL"`
	WebhookLogsEnabled bool   `env:"WEBHOOK_LOGS_ENABLED,default=false"`
	DispatchWorkers    int    `env:"DISPATCH_WORKERS,default=16"`
	DispatchBuffer     int    `env:"DISPATCH_BUFFER,default=1024"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Timeout bounds every outbound HTTP call.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay is the inter-item delay during a retry sweep.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) RetrySweepInterval() time.Duration {
	return time.Duration(c.RetrySweepSeconds) * time.Second
}

func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckSeconds) * time.Second
}

// AllowedIPList returns the admission allow-list; empty means allow all.
func (c *Config) AllowedIPList() []string {
	return splitCSV(c.AllowedIPs)
}

// SubscribedEventList returns the notification-type allow-list; empty means
// allow all.
func (c *Config) SubscribedEventList() []string {
	return splitCSV(c.SubscribedEvents)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
