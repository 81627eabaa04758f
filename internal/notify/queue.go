package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gazette-cms/gazette/jobs"
)

// EmailEnqueuer is satisfied by *jobs.Client.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueNotifier renders messages and hands them to the mail queue. A message
// counts as delivered once it is enqueued.
type QueueNotifier struct {
	queue   EmailEnqueuer
	logger  *slog.Logger
	timeout time.Duration
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(queue EmailEnqueuer, logger *slog.Logger, timeout time.Duration) *QueueNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QueueNotifier{queue: queue, logger: logger, timeout: timeout}
}

// Deliver renders and enqueues the message.
func (n *QueueNotifier) Deliver(ctx context.Context, address string, kind Kind, payload Payload) error {
	msg, err := Render(address, kind, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	info, err := n.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if info != nil {
		n.logger.Debug("mail enqueued", slog.String("task_id", info.ID), slog.String("kind", string(kind)))
	}
	return nil
}

var _ Notifier = (*QueueNotifier)(nil)
