// Package worker delivers queued notification emails.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/notify"
	"github.com/eventmarket/backend/pkg/mailer"
	"github.com/eventmarket/backend/pkg/queue"
)

// JobQueue is the subset of the Redis queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// EmailLogStore records delivery attempts.
type EmailLogStore interface {
	CreateEmailLog(ctx context.Context, el *models.EmailLog) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEmailFailed(ctx context.Context, id uuid.UUID, message string) error
}

// EmailProcessor renders and sends email jobs.
type EmailProcessor struct {
	queue   JobQueue
	sender  mailer.Sender
	logs    EmailLogStore
	from    string
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEmailProcessor creates an email processor. from is the RFC 5322 From
// header value.
func NewEmailProcessor(q JobQueue, sender mailer.Sender, logs EmailLogStore, from string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		queue:   q,
		sender:  sender,
		logs:    logs,
		from:    from,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process renders and delivers one email job. Every attempt gets its own
// email_logs row.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := queue.DecodeEmail(job)
	if err != nil {
		return err
	}
	rendered, err := notify.Render(notify.Kind(payload.Kind), payload.Params)
	if err != nil {
		return fmt.Errorf("render %s: %w", payload.Kind, err)
	}

	el := &models.EmailLog{
		ID:             uuid.New(),
		Kind:           payload.Kind,
		RecipientEmail: payload.RecipientEmail,
		Subject:        rendered.Subject,
		Status:         models.EmailLogStatusPending,
		CreatedAt:      p.now().UTC(),
	}
	if err := p.logs.CreateEmailLog(ctx, el); err != nil {
		p.logger.Warn("create email log failed", zap.Error(err), zap.String("job_id", job.ID))
		el = nil
	}

	sendErr := p.sender.Send(ctx, &mailer.Message{
		From:    p.from,
		To:      []string{payload.RecipientEmail},
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	})

	if el != nil {
		var logErr error
		if sendErr != nil {
			logErr = p.logs.MarkEmailFailed(ctx, el.ID, sendErr.Error())
		} else {
			logErr = p.logs.MarkEmailSent(ctx, el.ID, p.now().UTC())
		}
		if logErr != nil {
			p.logger.Warn("update email log failed", zap.Error(logErr), zap.String("job_id", job.ID))
		}
	}
	if sendErr != nil {
		return fmt.Errorf("send %s: %w", payload.Kind, sendErr)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if _, reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
