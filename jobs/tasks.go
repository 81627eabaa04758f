package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gazette-cms/gazette/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries time-sensitive mail such as one-time codes.
	QueueCritical = "critical"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, errors.New("jobs: send email requires recipient")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Mailer sends a rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	mailer  Mailer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSendEmailJob constructs the job handler.
func NewSendEmailJob(mailer Mailer, logger *slog.Logger) *SendEmailJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SendEmailJob{mailer: mailer, logger: logger}
}

// WithMetrics attaches job metrics.
func (j *SendEmailJob) WithMetrics(m *jobmetrics.Metrics) *SendEmailJob {
	j.metrics = m
	return j
}

// Handle sends the email. Malformed payloads are not retried.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskTypeSendEmail)
	return tracker.End(j.send(ctx, t))
}

func (j *SendEmailJob) send(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("send email: decode payload", slog.Any("error", err))
		return fmt.Errorf("jobs: decode send email: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("jobs: send email without recipient: %w", asynq.SkipRetry)
	}
	if err := j.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.logger.Warn("send email failed", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	j.logger.Info("email sent", slog.String("subject", payload.Subject))
	return nil
}
