package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/async"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
)

type stubNotifier struct {
	sent []notifier.EmailRequest
	err  error
}

func (s *stubNotifier) SendEmail(ctx context.Context, req notifier.EmailRequest) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, req)
	return nil
}

func TestSendEmailJobDrainsQueue(t *testing.T) {
	queue := async.NewNotificationQueue()
	queue.EnqueueEmail(notifier.EmailRequest{To: "a@example.com", Subject: "one"})
	queue.EnqueueEmail(notifier.EmailRequest{To: "b@example.com", Subject: "two"})
	sink := &stubNotifier{}
	job := NewSendEmailJob(queue, sink, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, sink.sent, 2)
	assert.Zero(t, queue.PendingEmails())
}

func TestSendEmailJobRequeuesOnDeliveryFailure(t *testing.T) {
	queue := async.NewNotificationQueue()
	queue.EnqueueEmail(notifier.EmailRequest{To: "a@example.com"})
	sink := &stubNotifier{err: errors.New("smtp down")}
	job := NewSendEmailJob(queue, sink, nil)

	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, 1, queue.PendingEmails(), "undelivered mail goes back for the next run")
}

func TestSendEmailJobSkipsUnimplementedTransport(t *testing.T) {
	queue := async.NewNotificationQueue()
	queue.EnqueueEmail(notifier.EmailRequest{To: "a@example.com"})
	job := NewSendEmailJob(queue, notifier.NewLoggerService(nil), nil)

	require.NoError(t, job.Run(context.Background()), "a missing transport is not a job failure")
	assert.Zero(t, queue.PendingEmails())
}
