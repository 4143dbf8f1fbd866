package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/events"
)

const defaultQueueSize = 256

// ErrQueueFull is returned by Enqueue when the worker cannot accept more events.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker moves event handling off the publisher's goroutine so
// HTTP requests and scheduler runs do not wait on notification delivery.
type NotificationWorker struct {
	handle events.EventHandler
	logger *zap.Logger
	queue  chan queued
	done   chan struct{}
	once   sync.Once
}

type queued struct {
	ctx   context.Context
	event events.Event
}

// NewNotificationWorker builds a worker around handle. A non-positive size
// uses the default queue size.
func NewNotificationWorker(handle events.EventHandler, logger *zap.Logger, size int) *NotificationWorker {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handle: handle,
		logger: logger,
		queue:  make(chan queued, size),
		done:   make(chan struct{}),
	}
}

// Subscribe routes the given event types through the worker.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher, types ...events.EventType) {
	for _, eventType := range types {
		dispatcher.Subscribe(eventType, w.Enqueue)
	}
}

// Enqueue accepts an event without blocking. The publisher's deadline is
// dropped; the event is handled with its values only.
func (w *NotificationWorker) Enqueue(ctx context.Context, event events.Event) error {
	select {
	case w.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		w.logger.Warn("notification dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return ErrQueueFull
	}
}

// Run handles queued events until ctx is cancelled, then drains what is
// already queued and returns.
func (w *NotificationWorker) Run(ctx context.Context) {
	defer w.once.Do(func() { close(w.done) })
	w.logger.Info("notification worker started")
	for {
		select {
		case item := <-w.queue:
			w.process(item)
		case <-ctx.Done():
			w.drain()
			w.logger.Info("notification worker stopped")
			return
		}
	}
}

// Done is closed once Run has returned.
func (w *NotificationWorker) Done() <-chan struct{} {
	return w.done
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case item := <-w.queue:
			w.process(item)
		default:
			return
		}
	}
}

func (w *NotificationWorker) process(item queued) {
	if err := w.handle(item.ctx, item.event); err != nil {
		w.logger.Warn("notification handler failed",
			zap.String("event_id", item.event.ID),
			zap.String("event_type", string(item.event.Type)),
			zap.String("ticket_id", item.event.TicketID),
			zap.Error(err))
	}
}
