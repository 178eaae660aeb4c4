// Package notify dispatches templated notification emails. Delivery is best
// effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/queue"
)

// Kind names a notification template.
type Kind string

const (
	KindTeamInvite        Kind = models.EmailKindTeamInvite
	KindRfqInvite         Kind = models.EmailKindRfqInvite
	KindQuotationReceived Kind = models.EmailKindQuotationReceived
)

// Valid reports whether k has templates.
func (k Kind) Valid() bool {
	switch k {
	case KindTeamInvite, KindRfqInvite, KindQuotationReceived:
		return true
	}
	return false
}

// Dispatcher sends a notification of kind to one recipient.
type Dispatcher interface {
	Send(ctx context.Context, kind Kind, to string, params map[string]string) error
}

// Enqueuer accepts email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueueDispatcher hands notifications to the email worker through Redis.
type QueueDispatcher struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewQueueDispatcher creates a dispatcher backed by q.
func NewQueueDispatcher(q Enqueuer, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: q, logger: logger}
}

// Send validates the notification and enqueues it.
func (d *QueueDispatcher) Send(ctx context.Context, kind Kind, to string, params map[string]string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("notification %s has no recipient", kind)
	}
	return d.queue.EnqueueEmail(ctx, queue.EmailPayload{
		Kind:           string(kind),
		RecipientEmail: to,
		Params:         params,
	})
}

// LogDispatcher records notifications in the log and drops them. Used when
// no queue is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Send logs kind and recipient. Params are not logged; they may carry invite
// links.
func (d *LogDispatcher) Send(_ context.Context, kind Kind, to string, _ map[string]string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	d.logger.Info("Email queue not configured, notification dropped",
		zap.String("kind", string(kind)), zap.String("to", to))
	return nil
}
