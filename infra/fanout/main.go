package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dicomlite/dicomlite/entity"
)

// Logger is the slice of the infra logger the manager needs; declared here so
// the package stays import-cycle free.
type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...interface{})
	WarningWithContextf(ctx context.Context, format string, args ...interface{})
	ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{})
}

// Manager dispatches notifications for committed change feed entries to a
// fixed set of providers. The provider list is immutable after construction.
// Publish never returns an error to its caller: provider failures are logged
// and skipped so one broken destination cannot disturb its siblings or an
// already-committed mutation.
type Manager struct {
	source    string
	timeout   time.Duration
	grace     time.Duration
	logger    Logger
	providers []Provider
}

func NewManager(source string, timeout, grace time.Duration, logger Logger, providers ...Provider) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if grace <= 0 {
		grace = timeout + 2*time.Second
	}
	return &Manager{
		source:    source,
		timeout:   timeout,
		grace:     grace,
		logger:    logger,
		providers: providers,
	}
}

func (m *Manager) ProviderCount() int {
	return len(m.providers)
}

// Publish builds one notification per entry and dispatches the batch to every
// provider concurrently, each with its own timeout. The call joins the
// dispatch group for at most the grace period; slower providers finish (or
// time out) in the background so shutdown stays deterministic without
// blocking the ingestion response path.
func (m *Manager) Publish(ctx context.Context, entries ...entity.ChangeFeedEntry) {
	if len(entries) == 0 || len(m.providers) == 0 {
		return
	}

	notifications := make([]Notification, 0, len(entries))
	for _, entry := range entries {
		notifications = append(notifications, NewNotification(entry, m.source))
	}

	var wg sync.WaitGroup
	for _, provider := range m.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.ErrorWithContextf(ctx, fmt.Errorf("%v", r),
						"[Fanout] provider %s panicked", p.Name())
				}
			}()

			dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
			defer cancel()

			if err := p.PublishBatch(dispatchCtx, notifications); err != nil {
				m.logger.ErrorWithContextf(ctx, err,
					"[Fanout] provider %s failed to deliver %d notification(s)", p.Name(), len(notifications))
			}
		}(provider)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.grace):
		m.logger.WarningWithContextf(ctx, "[Fanout] dispatch exceeded grace period of %s, detaching", m.grace)
	}
}

// Close releases provider resources at shutdown; a failing provider close does
// not stop the others.
func (m *Manager) Close() {
	for _, provider := range m.providers {
		if err := provider.Close(); err != nil {
			m.logger.ErrorWithContextf(context.Background(), err,
				"[Fanout] failed to close provider %s", provider.Name())
		}
	}
}
