package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// EmailRequest describes an outbound email notification.
type EmailRequest struct {
	To        string
	Subject   string
	Template  string
	Variables map[string]any
}

// Service delivers customer notifications. Implementations must never be
// invoked on the payment-state write path directly; state transitions enqueue
// and a background job delivers.
type Service interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

// ErrNotImplemented indicates no real delivery channel is configured.
var ErrNotImplemented = errors.New("notifier: not implemented")

// LoggerService logs notification intents; used in tests and bootstrap
// environments without an SMTP relay.
type LoggerService struct {
	logger *slog.Logger
}

// NewLoggerService creates the log-only notifier.
func NewLoggerService(logger *slog.Logger) *LoggerService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoggerService{logger: logger}
}

// SendEmail records the email notification request.
func (s *LoggerService) SendEmail(ctx context.Context, req EmailRequest) error {
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	s.logger.InfoContext(ctx, "email notification", "to", req.To, "subject", req.Subject, "template", req.Template)
	return ErrNotImplemented
}
