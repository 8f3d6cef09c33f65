package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WebhookProvider POSTs each notification to a fixed URL, retrying with
// exponential backoff across a bounded attempt count. Only the final failure
// surfaces to the manager's log.
type WebhookProvider struct {
	url             string
	maxAttempts     int
	initialInterval time.Duration
	client          *http.Client
}

func NewWebhookProvider(url string, maxAttempts int) *WebhookProvider {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &WebhookProvider{
		url:             url,
		maxAttempts:     maxAttempts,
		initialInterval: 500 * time.Millisecond,
		client:          &http.Client{},
	}
}

func (p *WebhookProvider) Name() string {
	return "webhook"
}

func (p *WebhookProvider) Publish(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	operation := func() error {
		return p.post(ctx, body)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.initialInterval
	bo := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(p.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("webhook delivery to %s failed after %d attempt(s): %w", p.url, p.maxAttempts, err)
	}
	return nil
}

func (p *WebhookProvider) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookProvider) PublishBatch(ctx context.Context, notifications []Notification) error {
	return publishEach(ctx, p, notifications)
}

func (p *WebhookProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
