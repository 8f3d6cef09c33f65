package fanout

import "context"

// Provider is one delivery destination. Implementations must be safe for
// concurrent use; a failing provider only affects itself (the manager logs and
// moves on).
type Provider interface {
	Name() string
	Publish(ctx context.Context, notification Notification) error
	PublishBatch(ctx context.Context, notifications []Notification) error
	Close() error
}

// publishEach is the fallback batch behavior for providers without a native
// batch operation: first failure stops the batch.
func publishEach(ctx context.Context, p Provider, notifications []Notification) error {
	for _, n := range notifications {
		if err := p.Publish(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
