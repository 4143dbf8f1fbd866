package mocks

import (
	"context"
	"sync"

	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

// MockNotifier captures sent notifications. SendFunc, when set, decides the
// outcome of each send; captured messages include failed sends.
type MockNotifier struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, n notify.Notification) error
	Sent     []notify.Notification
}

func (m *MockNotifier) Send(ctx context.Context, n notify.Notification) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, n)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, n)
	}
	return nil
}

// Messages returns a copy of the captured notifications.
func (m *MockNotifier) Messages() []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Notification(nil), m.Sent...)
}
