package async

import (
	"sync"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
)

// NotificationQueue buffers outbound email tasks for background dispatch.
// Enqueueing never fails and never blocks, which is what keeps notification
// failures from rolling back payment-state transitions.
type NotificationQueue struct {
	mu     sync.Mutex
	emails []notifier.EmailRequest
}

// NewNotificationQueue returns an empty notification queue instance.
func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{emails: make([]notifier.EmailRequest, 0)}
}

// EnqueueEmail appends a pending email request.
func (q *NotificationQueue) EnqueueEmail(req notifier.EmailRequest) {
	if q == nil || req.To == "" {
		return
	}
	q.mu.Lock()
	q.emails = append(q.emails, req)
	q.mu.Unlock()
}

// DrainEmails returns all pending email requests and clears the buffer.
func (q *NotificationQueue) DrainEmails() []notifier.EmailRequest {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.emails
	q.emails = make([]notifier.EmailRequest, 0)
	return drained
}

// RequeueEmail puts a failed delivery back for the next drain.
func (q *NotificationQueue) RequeueEmail(req notifier.EmailRequest) {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.emails = append(q.emails, req)
	q.mu.Unlock()
}

// PendingEmails reports buffered email tasks.
func (q *NotificationQueue) PendingEmails() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.emails)
}
