// Package notify hands password reset instructions to whatever delivers
// them to the user.
package notify

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"go-identity/internal/model"
)

// ResetInstructions is the payload a downstream mailer needs.
type ResetInstructions struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newInstructions(baseURL string, user model.User, token string, expiresAt time.Time) ResetInstructions {
	return ResetInstructions{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ResetURL:  baseURL + url.PathEscape(token),
		ExpiresAt: expiresAt.UTC(),
	}
}

// LogSender writes the instructions to the log. Used in development and
// when no mailer is wired.
type LogSender struct {
	baseURL string
	log     *slog.Logger
}

func NewLogSender(baseURL string, log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{baseURL: baseURL, log: log.With("component", "notify")}
}

func (s *LogSender) SendResetInstructions(ctx context.Context, user model.User, token string, expiresAt time.Time) error {
	msg := newInstructions(s.baseURL, user, token, expiresAt)
	s.log.InfoContext(ctx, "password reset requested",
		"user_id", msg.UserID,
		"email", msg.Email,
		"reset_url", msg.ResetURL,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
