package fanout

import (
	"context"
	"sync"
)

// MemoryProvider records notifications in arrival order. Used for local
// inspection and in tests.
type MemoryProvider struct {
	mu            sync.Mutex
	notifications []Notification
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (p *MemoryProvider) Name() string {
	return "memory"
}

func (p *MemoryProvider) Publish(_ context.Context, notification Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, notification)
	return nil
}

func (p *MemoryProvider) PublishBatch(ctx context.Context, notifications []Notification) error {
	return publishEach(ctx, p, notifications)
}

// Notifications returns a copy of everything recorded so far.
func (p *MemoryProvider) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

func (p *MemoryProvider) Close() error {
	return nil
}
