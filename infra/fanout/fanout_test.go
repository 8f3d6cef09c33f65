package fanout

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dicomlite/dicomlite/entity"
)

type nopLogger struct{}

func (nopLogger) InfoWithContextf(context.Context, string, ...interface{})         {}
func (nopLogger) WarningWithContextf(context.Context, string, ...interface{})      {}
func (nopLogger) ErrorWithContextf(context.Context, error, string, ...interface{}) {}

// flakyProvider fails or panics on demand while counting delivery attempts.
type flakyProvider struct {
	name    string
	fail    bool
	panics  bool
	batches atomic.Int64
}

func (p *flakyProvider) Name() string { return p.name }

func (p *flakyProvider) Publish(ctx context.Context, n Notification) error {
	return p.PublishBatch(ctx, []Notification{n})
}

func (p *flakyProvider) PublishBatch(context.Context, []Notification) error {
	p.batches.Add(1)
	if p.panics {
		panic("provider blew up")
	}
	if p.fail {
		return errors.New("delivery refused")
	}
	return nil
}

func (p *flakyProvider) Close() error { return nil }

func feedEntry(seq int64, action string) entity.ChangeFeedEntry {
	state := entity.FeedStateCurrent
	if action == entity.FeedActionDeleted {
		state = entity.FeedStateDeleted
	}
	return entity.ChangeFeedEntry{
		Sequence:          seq,
		StudyInstanceUID:  "1.2.3",
		SeriesInstanceUID: "4.5.6",
		SOPInstanceUID:    "7.8.9",
		Action:            action,
		State:             state,
		Timestamp:         time.Now().UTC(),
	}
}

func TestManagerIsolatesFailingProviders(t *testing.T) {
	failing := &flakyProvider{name: "failing", fail: true}
	panicking := &flakyProvider{name: "panicking", panics: true}
	healthy := NewMemoryProvider()

	m := NewManager("http://localhost:8080", time.Second, 2*time.Second, nopLogger{},
		failing, panicking, healthy)
	m.Publish(context.Background(), feedEntry(1, entity.FeedActionCreated))

	require.Eventually(t, func() bool {
		return len(healthy.Notifications()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), failing.batches.Load())
	require.Equal(t, int64(1), panicking.batches.Load())
}

func TestManagerSurvivesCancelledCaller(t *testing.T) {
	healthy := NewMemoryProvider()
	m := NewManager("http://localhost:8080", time.Second, 2*time.Second, nopLogger{}, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Publish(ctx, feedEntry(1, entity.FeedActionCreated))

	require.Eventually(t, func() bool {
		return len(healthy.Notifications()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestManagerNoProvidersNoEntries(t *testing.T) {
	m := NewManager("http://localhost:8080", time.Second, 2*time.Second, nopLogger{})
	m.Publish(context.Background(), feedEntry(1, entity.FeedActionCreated))

	memory := NewMemoryProvider()
	m = NewManager("http://localhost:8080", time.Second, 2*time.Second, nopLogger{}, memory)
	m.Publish(context.Background())
	require.Empty(t, memory.Notifications())
}

func TestNotificationEnvelope(t *testing.T) {
	n := NewNotification(feedEntry(42, entity.FeedActionDeleted), "http://localhost:8080")

	require.NotEmpty(t, n.ID)
	require.Equal(t, "http://localhost:8080", n.Source)
	require.Equal(t, "1.0", n.SpecVersion)
	require.Equal(t, EventTypeDeleted, n.Type)
	require.Equal(t, "/studies/1.2.3/series/4.5.6/instances/7.8.9", n.Subject)
	require.Equal(t, "1", n.DataVersion)
	require.Equal(t, int64(42), n.Data.Sequence)

	created := NewNotification(feedEntry(1, entity.FeedActionReplaced), "http://localhost:8080")
	require.Equal(t, EventTypeCreated, created.Type)
}

func TestNotificationSequenceEncodesAsPlainInteger(t *testing.T) {
	n := NewNotification(feedEntry(1234567, entity.FeedActionCreated), "http://localhost:8080")

	body, err := json.Marshal(n)
	require.NoError(t, err)
	require.Contains(t, string(body), `"sequenceNumber":1234567`)

	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	var decoded map[string]interface{}
	require.NoError(t, decoder.Decode(&decoded))
	data := decoded["data"].(map[string]interface{})
	require.Equal(t, json.Number("1234567"), data["sequenceNumber"])
}

func TestFileProviderAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "log.ndjson")
	p, err := NewFileProvider(path)
	require.NoError(t, err)

	batch := []Notification{
		NewNotification(feedEntry(1, entity.FeedActionCreated), "http://localhost:8080"),
		NewNotification(feedEntry(2, entity.FeedActionDeleted), "http://localhost:8080"),
	}
	require.NoError(t, p.PublishBatch(context.Background(), batch))
	require.NoError(t, p.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []Notification
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var n Notification
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &n))
		lines = append(lines, n)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	require.Equal(t, int64(1), lines[0].Data.Sequence)
	require.Equal(t, EventTypeDeleted, lines[1].Type)
}

func TestWebhookProviderRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var n Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		require.Equal(t, int64(7), n.Data.Sequence)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := &WebhookProvider{
		url:             server.URL,
		maxAttempts:     3,
		initialInterval: 5 * time.Millisecond,
		client:          server.Client(),
	}
	err := p.Publish(context.Background(), NewNotification(feedEntry(7, entity.FeedActionCreated), "http://localhost:8080"))
	require.NoError(t, err)
	require.Equal(t, int64(3), calls.Load())
}

func TestWebhookProviderGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := &WebhookProvider{
		url:             server.URL,
		maxAttempts:     3,
		initialInterval: 5 * time.Millisecond,
		client:          server.Client(),
	}
	err := p.Publish(context.Background(), NewNotification(feedEntry(1, entity.FeedActionCreated), "http://localhost:8080"))
	require.Error(t, err)
	require.Equal(t, int64(3), calls.Load())
}

func TestMemoryProviderPreservesOrder(t *testing.T) {
	p := NewMemoryProvider()
	for seq := int64(1); seq <= 3; seq++ {
		require.NoError(t, p.Publish(context.Background(), NewNotification(feedEntry(seq, entity.FeedActionCreated), "src")))
	}

	got := p.Notifications()
	require.Len(t, got, 3)
	for i, n := range got {
		require.Equal(t, int64(i+1), n.Data.Sequence)
	}
}
