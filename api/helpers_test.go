package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/verval/verval-cli/credstore"
	"github.com/verval/verval-cli/session"
)

// backend is a fake verval API: a refresh endpoint plus whatever resource
// handler a test installs.
type backend struct {
	t *testing.T

	refreshCalls  atomic.Int32
	refreshTokens chan string // refresh tokens received, in order

	mu             sync.Mutex
	refreshHandler func(w http.ResponseWriter, refreshToken string)
	resource       http.HandlerFunc

	server *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{t: t, refreshTokens: make(chan string, 128)}
	b.refreshHandler = func(w http.ResponseWriter, _ string) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "A2", "refreshToken": "R2"})
	}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == DefaultRefreshPath {
			b.refreshCalls.Add(1)
			if r.Header.Get("Authorization") != "" {
				t.Errorf("refresh call carried an Authorization header")
			}
			var body struct {
				RefreshToken string `json:"refreshToken"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("refresh body: %v", err)
			}
			b.refreshTokens <- body.RefreshToken
			b.mu.Lock()
			h := b.refreshHandler
			b.mu.Unlock()
			h(w, body.RefreshToken)
			return
		}
		b.mu.Lock()
		h := b.resource
		b.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) onRefresh(h func(w http.ResponseWriter, refreshToken string)) {
	b.mu.Lock()
	b.refreshHandler = h
	b.mu.Unlock()
}

func (b *backend) onResource(h http.HandlerFunc) {
	b.mu.Lock()
	b.resource = h
	b.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// acceptOnly answers 200 with body for requests bearing token, 401 otherwise.
func acceptOnly(token string, body any, rejected *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			if rejected != nil {
				rejected.Add(1)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type fixture struct {
	client  *Client
	session *session.State
	store   *credstore.MemoryStore
	reader  *sdkmetric.ManualReader
	events  *recordingEvents
}

// newFixture builds a client against b with a logged-in session holding
// access token A1 and refresh token R1.
func newFixture(t *testing.T, b *backend) *fixture {
	t.Helper()
	ctx := context.Background()

	sess := session.New()
	sess.Set("u-1", "A1")
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, credstore.KeyAccessToken, "A1"))
	require.NoError(t, store.Set(ctx, credstore.KeyRefreshToken, "R1"))
	require.NoError(t, store.Set(ctx, credstore.KeyUser, `{"id":"u-1"}`))

	reader := sdkmetric.NewManualReader()
	events := &recordingEvents{}
	client, err := NewClient(
		Config{BaseURL: b.server.URL, RequestTimeout: 5 * time.Second},
		sess,
		store,
		WithEvents(events),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)
	require.NoError(t, err)

	return &fixture{client: client, session: sess, store: store, reader: reader, events: events}
}

func (f *fixture) stored(t *testing.T, key credstore.Key) (string, bool) {
	t.Helper()
	v, ok, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

// counter sums every data point of the named int64 counter.
func (f *fixture) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

type recordingEvents struct {
	rejected       atomic.Int32
	refreshing     atomic.Int32
	refreshOK      atomic.Int32
	refreshFailed  atomic.Int32
	retrying       atomic.Int32
	saveFailed     atomic.Int32
	sessionCleared atomic.Int32
}

func (e *recordingEvents) AccessTokenRejected()         { e.rejected.Add(1) }
func (e *recordingEvents) Refreshing()                  { e.refreshing.Add(1) }
func (e *recordingEvents) RefreshOK()                   { e.refreshOK.Add(1) }
func (e *recordingEvents) RefreshFailed(_ error)        { e.refreshFailed.Add(1) }
func (e *recordingEvents) TokenRefreshedRetrying()      { e.retrying.Add(1) }
func (e *recordingEvents) CredentialSaveFailed(_ error) { e.saveFailed.Add(1) }
func (e *recordingEvents) SessionCleared()              { e.sessionCleared.Add(1) }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
