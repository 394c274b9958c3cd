package async

import (
	"context"
	"fmt"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
)

// QueueNotifier implements notifier.Service by enqueueing requests for
// background workers.
type QueueNotifier struct {
	queue *NotificationQueue
}

// NewQueueNotifier wraps a notification queue to satisfy notifier.Service for
// application flows.
func NewQueueNotifier(queue *NotificationQueue) notifier.Service {
	return &QueueNotifier{queue: queue}
}

// SendEmail enqueues the email request for asynchronous delivery.
func (n *QueueNotifier) SendEmail(ctx context.Context, req notifier.EmailRequest) error {
	if n == nil || n.queue == nil {
		return fmt.Errorf("notification queue unavailable")
	}
	n.queue.EnqueueEmail(req)
	return nil
}
