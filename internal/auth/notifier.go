// AngelaMos | 2026
// notifier.go

package auth

import (
	"context"
	"log/slog"
	"net/url"
	"time"
)

// ResetNotifier delivers account security messages. Delivery itself is
// outside this service.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, link string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, email string) error
}

// LogNotifier records that a message would have been sent. The reset link is
// never written to the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(
	ctx context.Context,
	email, _ string,
	expiresAt time.Time,
) error {
	n.logger.InfoContext(ctx, "password reset link issued",
		"email", email,
		"expires_at", expiresAt,
	)
	return nil
}

func (n *LogNotifier) SendPasswordChanged(ctx context.Context, email string) error {
	n.logger.InfoContext(ctx, "password changed notice issued", "email", email)
	return nil
}

func resetLink(base, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)

	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?" + q.Encode()
	}
	u.RawQuery = q.Encode()
	return u.String()
}
