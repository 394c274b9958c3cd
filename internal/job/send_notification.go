package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/async"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
)

// SendEmailJob drains the email notification queue.
type SendEmailJob struct {
	Queue    *async.NotificationQueue
	Notifier notifier.Service
	Logger   *slog.Logger
}

// NewSendEmailJob constructs the email drain task.
func NewSendEmailJob(queue *async.NotificationQueue, notifier notifier.Service, logger *slog.Logger) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{Queue: queue, Notifier: notifier, Logger: logger}
}

// Name returns the task identifier.
func (j *SendEmailJob) Name() string { return "notify.email" }

// Run sends queued emails. Unimplemented transports are skipped; real delivery
// failures requeue the message for the next run.
func (j *SendEmailJob) Run(ctx context.Context) error {
	if j == nil || j.Queue == nil || j.Notifier == nil {
		return fmt.Errorf("email notification job dependencies not configured")
	}
	emails := j.Queue.DrainEmails()
	if len(emails) == 0 {
		return nil
	}
	for _, req := range emails {
		if err := j.Notifier.SendEmail(ctx, req); err != nil {
			if errors.Is(err, notifier.ErrNotImplemented) {
				j.Logger.Warn("notification email not delivered", "reason", err)
				continue
			}
			j.Queue.RequeueEmail(req)
			return err
		}
	}
	j.Logger.Debug("email notifications sent", "count", len(emails))
	return nil
}
