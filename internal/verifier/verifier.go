// Package verifier checks provider webhook signatures. The provider signs
// "{timestamp}.{payload}" with HMAC-SHA256 and sends the base64 digest in a
// request header.
package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/nexuspay/webhook-relay/internal/domain"
	"go.uber.org/zap"
)

// Verify reports whether signature is a valid base64 HMAC-SHA256 digest of
// "{timestamp}.{payload}" under secret. Comparison is constant time.
func Verify(payload []byte, signature, timestamp, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Verifier decides the verification status for inbound requests. With no
// secret configured verification is skipped, not failed.
type Verifier struct {
	secret string
	logger *zap.Logger
}

func New(secret string, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{secret: secret, logger: logger}
}

func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Decide returns the verification status for one request.
func (v *Verifier) Decide(payload []byte, signature, timestamp string) domain.VerificationStatus {
	if !v.Enabled() {
		return domain.VerificationSkipped
	}
	if Verify(payload, signature, timestamp, v.secret) {
		return domain.VerificationVerified
	}
	v.logger.Warn("webhook signature mismatch",
		zap.String("timestamp", timestamp),
		zap.Int("payload_bytes", len(payload)),
	)
	return domain.VerificationFailed
}
