package finance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/credstore"
	"github.com/verval/verval-cli/session"
)

// call is one request seen by the fake backend.
type call struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

// fakeAPI routes "METHOD /path" to canned handlers and records every call.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []call
	routes map[string]http.HandlerFunc
}

func (f *fakeAPI) handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	f.routes[route] = h
	f.mu.Unlock()
}

func (f *fakeAPI) reply(route string, status int, body string) {
	f.handle(route, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeAPI) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAPI) last(t *testing.T) call {
	t.Helper()
	calls := f.recorded()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func newService(t *testing.T) (*Service, *fakeAPI, *session.State) {
	t.Helper()
	fake := &fakeAPI{routes: map[string]http.HandlerFunc{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
		for k := range r.URL.Query() {
			c.Query[k] = r.URL.Query().Get(k)
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &c.Body)
		}

		fake.mu.Lock()
		fake.calls = append(fake.calls, c)
		h := fake.routes[r.Method+" "+r.URL.Path]
		fake.mu.Unlock()

		if h == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"not found"}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	sess := session.New()
	sess.Set("u-1", "A1")
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credstore.KeyRefreshToken, "R1"))

	client, err := api.NewClient(api.Config{BaseURL: srv.URL}, sess, store)
	require.NoError(t, err)
	return New(client), fake, sess
}

func ptr[T any](v T) *T { return &v }
