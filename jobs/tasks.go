package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storefront/storefront-api/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskPurgeResetCodes clears verification codes whose window has closed.
	TaskPurgeResetCodes = "accounts:purge_reset_codes"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// ErrUndeliverable marks a delivery failure that retrying cannot fix.
var ErrUndeliverable = errors.New("undeliverable email")

// Mailer delivers a rendered email.
type Mailer interface {
	Deliver(ctx context.Context, payload SendEmailPayload) error
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	mailer  Mailer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSendEmailJob wires the delivery backend for email tasks.
func NewSendEmailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{mailer: mailer, logger: logger, metrics: metrics}
}

// Handle decodes the payload and delivers it. Malformed payloads and
// undeliverable messages are not retried.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskTypeSendEmail)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	if payload.To == "" {
		return tracker.End(fmt.Errorf("missing recipient: %w", asynq.SkipRetry))
	}
	if err := j.mailer.Deliver(ctx, payload); err != nil {
		j.logger.Warn("send email", slog.String("subject", payload.Subject), slog.Any("error", err))
		if errors.Is(err, ErrUndeliverable) {
			err = fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return tracker.End(err)
	}
	j.logger.Info("email sent", slog.String("subject", payload.Subject))
	return tracker.End(nil)
}

// NewPurgeResetCodesTask builds the periodic purge task.
func NewPurgeResetCodesTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskPurgeResetCodes, nil, asynq.Queue(QueueDefault)), nil
}

// CodePurger removes expired verification codes.
type CodePurger interface {
	ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// PurgeResetCodesJob clears verification codes past their expiry.
type PurgeResetCodesJob struct {
	purger  CodePurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewPurgeResetCodesJob constructs the purge job.
func NewPurgeResetCodesJob(purger CodePurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *PurgeResetCodesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeResetCodesJob{purger: purger, logger: logger, metrics: metrics, now: time.Now}
}

// Handle runs one purge pass.
func (j *PurgeResetCodesJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j.purger == nil {
		return errors.New("purge reset codes: purger not configured")
	}
	tracker := j.metrics.Track(TaskPurgeResetCodes)
	cleared, err := j.purger.ClearExpiredCodes(ctx, j.now().UTC())
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddPurgedCodes(cleared)
	if cleared > 0 {
		j.logger.Info("purged expired reset codes", slog.Int64("count", cleared))
	}
	return tracker.End(nil)
}
