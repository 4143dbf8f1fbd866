package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

const defaultNotifyTimeout = 30 * time.Second

// NotificationService turns domain events into notifications and audit logs.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTicketAssigned,
		events.EventTicketReassigned,
		events.EventSLAEscalated,
		events.EventTicketClosed,
		events.EventApprovalReminderSent,
	}
}

// RegisterHandlers subscribes Handle synchronously to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range n.EventTypes() {
		n.dispatcher.Subscribe(eventType, n.Handle)
	}
}

// Handle reacts to one event. Assignment events notify the technician; the
// rest are only logged.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	if event.Type == events.EventTicketAssigned {
		return n.handleTicketAssigned(ctx, event)
	}
	return n.logEvent(ctx, event)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || n.notifier == nil || strings.TrimSpace(payload.TechnicianEmail) == "" {
		return nil
	}

	variables := map[string]string{
		"Request_ID":      event.TicketID,
		"Support_Group":   payload.SupportGroupID,
		"Assignment_Type": payload.Strategy,
		"Request_Link":    strings.TrimRight(n.cfg.DashboardURL, "/") + "/requests/view/" + event.TicketID,
	}
	if payload.RedirectedFrom != nil {
		variables["Redirected_From"] = *payload.RedirectedFrom
	}

	timeout := n.cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := n.notifier.Send(sendCtx, notify.Notification{
		Template:  notify.TemplateTicketAssigned,
		To:        payload.TechnicianEmail,
		Variables: variables,
	}); err != nil {
		n.logger.Warn("assignment notification failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("technician_id", payload.TechnicianID),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}
