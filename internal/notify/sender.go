// Package notify renders and dispatches transactional email.
package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/storefront/storefront-api/jobs"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type emailQueue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueSender hands messages to the background worker.
type QueueSender struct {
	queue emailQueue
}

// NewQueueSender wraps the jobs client.
func NewQueueSender(queue emailQueue) *QueueSender {
	return &QueueSender{queue: queue}
}

// Send enqueues msg for delivery by the worker.
func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	_, err := s.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}
