// Package notify defines the outbound notification sink. The core only
// supplies a template key, a recipient and named variables; rendering and
// transport belong to the sink.
package notify

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Template identifies the message layout the sink should render.
type Template string

const (
	TemplateSLAEscalation    Template = "sla-escalation"
	TemplateTicketClosed     Template = "ticket-closed"
	TemplateTicketClosedCC   Template = "ticket-closed-cc"
	TemplateApprovalReminder Template = "approval-reminder"
	TemplateTicketAssigned   Template = "ticket-assigned"
)

// ErrNoRecipient is returned when a notification has no address.
var ErrNoRecipient = errors.New("notification has no recipient")

// Notification is one message to one recipient.
type Notification struct {
	Template  Template
	To        string
	Variables map[string]string
}

// Notifier delivers notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log instead of
// delivering them.
type LogNotifier struct {
	from   string
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(from string, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{from: from, logger: logger}
}

// Send logs the notification.
func (n *LogNotifier) Send(ctx context.Context, msg Notification) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := make([]string, 0, len(msg.Variables))
	for k := range msg.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n.logger.Info("notification",
		zap.String("from", n.from),
		zap.String("to", msg.To),
		zap.String("template", string(msg.Template)),
		zap.Strings("variables", keys))
	return nil
}
