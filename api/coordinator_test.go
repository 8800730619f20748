package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verval/verval-cli/credstore"
)

func TestEnsureFreshTokenSingleFlight(t *testing.T) {
	for _, n := range []int{2, 5, 20, 50} {
		t.Run(fmt.Sprintf("callers=%d", n), func(t *testing.T) {
			b := newBackend(t)
			f := newFixture(t, b)
			coord := f.client.Coordinator()

			release := make(chan struct{})
			b.onRefresh(func(w http.ResponseWriter, _ string) {
				<-release
				writeJSON(w, http.StatusOK, map[string]string{"accessToken": "A2", "refreshToken": "R2"})
			})

			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = coord.EnsureFreshToken(context.Background())
				}()
			}

			waitFor(t, func() bool { return b.refreshCalls.Load() == 1 && coord.waiting() == n-1 })
			close(release)
			wg.Wait()

			for i, err := range errs {
				require.NoError(t, err, "caller %d", i)
			}
			require.EqualValues(t, 1, b.refreshCalls.Load())
			require.Equal(t, "A2", f.session.Token())
			require.Equal(t, 0, coord.waiting())
			require.EqualValues(t, 1, f.counter(t, "verval.auth.refresh.calls"))
			require.EqualValues(t, n-1, f.counter(t, "verval.auth.refresh.coalesced"))

			access, _ := f.stored(t, credstore.KeyAccessToken)
			refresh, _ := f.stored(t, credstore.KeyRefreshToken)
			require.Equal(t, "A2", access)
			require.Equal(t, "R2", refresh)
		})
	}
}

func TestEnsureFreshTokenWithoutRefreshToken(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	require.NoError(t, f.store.Delete(context.Background(), credstore.KeyRefreshToken))

	err := f.client.Coordinator().EnsureFreshToken(context.Background())

	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.EqualValues(t, 0, b.refreshCalls.Load())
	require.EqualValues(t, 0, f.events.refreshing.Load())
	require.Equal(t, "A1", f.session.Token())
}

func TestEnsureFreshTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, _ string)
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ string) {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
			},
			wantErr: ErrRefreshRejected,
		},
		{
			name: "refresh token revoked",
			handler: func(w http.ResponseWriter, _ string) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
			},
			wantErr: ErrRefreshRejected,
		},
		{
			name: "no access token in answer",
			handler: func(w http.ResponseWriter, _ string) {
				writeJSON(w, http.StatusOK, map[string]string{"refreshToken": "R2"})
			},
			wantErr: ErrMissingAccessToken,
		},
		{
			name: "answer is not JSON",
			handler: func(w http.ResponseWriter, _ string) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>"))
			},
			wantErr: ErrMissingAccessToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			b.onRefresh(tt.handler)
			f := newFixture(t, b)

			err := f.client.Coordinator().EnsureFreshToken(context.Background())

			require.ErrorIs(t, err, tt.wantErr)
			require.EqualValues(t, 1, b.refreshCalls.Load())
			require.EqualValues(t, 1, f.events.refreshFailed.Load())
			// the coordinator alone never clears anything
			require.Equal(t, "A1", f.session.Token())
			refresh, ok := f.stored(t, credstore.KeyRefreshToken)
			require.True(t, ok)
			require.Equal(t, "R1", refresh)
		})
	}
}

func TestEnsureFreshTokenWrappedAnswer(t *testing.T) {
	b := newBackend(t)
	b.onRefresh(func(w http.ResponseWriter, _ string) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]string{"accessToken": "A2"},
		})
	})
	f := newFixture(t, b)

	require.NoError(t, f.client.Coordinator().EnsureFreshToken(context.Background()))
	require.Equal(t, "A2", f.session.Token())

	// no rotation in the answer keeps the old refresh token
	refresh, _ := f.stored(t, credstore.KeyRefreshToken)
	require.Equal(t, "R1", refresh)
}

func TestEnsureFreshTokenWaiterCancelled(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	coord := f.client.Coordinator()

	release := make(chan struct{})
	b.onRefresh(func(w http.ResponseWriter, _ string) {
		<-release
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "A2"})
	})

	leaderErr := make(chan error, 1)
	go func() { leaderErr <- coord.EnsureFreshToken(context.Background()) }()
	waitFor(t, func() bool { return b.refreshCalls.Load() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() { waiterErr <- coord.EnsureFreshToken(ctx) }()
	waitFor(t, func() bool { return coord.waiting() == 1 })

	cancel()
	require.ErrorIs(t, <-waiterErr, context.Canceled)

	close(release)
	require.NoError(t, <-leaderErr)
	require.Equal(t, "A2", f.session.Token())
}

func TestEnsureFreshTokenLeaderCancelled(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	coord := f.client.Coordinator()

	release := make(chan struct{})
	b.onRefresh(func(w http.ResponseWriter, _ string) {
		<-release
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "A2"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() { leaderErr <- coord.EnsureFreshToken(ctx) }()
	waitFor(t, func() bool { return b.refreshCalls.Load() == 1 })

	waiterErr := make(chan error, 1)
	go func() { waiterErr <- coord.EnsureFreshToken(context.Background()) }()
	waitFor(t, func() bool { return coord.waiting() == 1 })

	cancel()
	close(release)

	// the refresh call outlives the leader's context, so both see it succeed
	require.NoError(t, <-waiterErr)
	require.NoError(t, <-leaderErr)
	require.Equal(t, "A2", f.session.Token())
}

func TestRefreshSkipsStaleRejection(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	f.session.SetToken("A2")

	coalesced, err := f.client.Coordinator().refresh(context.Background(), "A1", true)

	require.NoError(t, err)
	require.False(t, coalesced)
	require.EqualValues(t, 0, b.refreshCalls.Load())
}

func TestRefreshSequentialCallsEachHitServer(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	coord := f.client.Coordinator()

	require.NoError(t, coord.EnsureFreshToken(context.Background()))
	require.NoError(t, coord.EnsureFreshToken(context.Background()))

	require.EqualValues(t, 2, b.refreshCalls.Load())
	require.Equal(t, "R1", <-b.refreshTokens)
	require.Equal(t, "R2", <-b.refreshTokens)
}

type failingSetStore struct {
	*credstore.MemoryStore
}

func (s failingSetStore) Set(_ context.Context, key credstore.Key, _ string) error {
	return &credstore.StoreError{Op: "set", Key: key, Err: errors.New("disk full")}
}

func TestRefreshPersistFailureIsNotFatal(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)

	events := &recordingEvents{}
	client, err := NewClient(
		Config{BaseURL: b.server.URL},
		f.session,
		failingSetStore{f.store},
		WithEvents(events),
	)
	require.NoError(t, err)

	require.NoError(t, client.Coordinator().EnsureFreshToken(context.Background()))
	require.Equal(t, "A2", f.session.Token())
	require.EqualValues(t, 2, events.saveFailed.Load())
	require.EqualValues(t, 1, events.refreshOK.Load())
}
