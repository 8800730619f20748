package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/verval/verval-cli/credstore"
)

// Coordinator runs at most one refresh call at a time. Callers arriving
// while a refresh is in flight wait for it and all receive its outcome.
type Coordinator struct {
	client  *Client
	path    string
	timeout time.Duration

	mu       sync.Mutex
	inflight *flight

	// commitMu orders installing refreshed tokens against clearing the session.
	commitMu sync.Mutex
}

// flight is one outstanding call to the refresh endpoint. err is written
// once by the leader before done is closed.
type flight struct {
	done    chan struct{}
	err     error
	waiters int
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse accepts both {accessToken, refreshToken} and the same pair
// wrapped in {"data": {...}}.
type refreshResponse struct {
	tokenPair
	Data *tokenPair `json:"data"`
}

func (r refreshResponse) pair() tokenPair {
	if r.AccessToken == "" && r.Data != nil {
		return *r.Data
	}
	return r.tokenPair
}

// EnsureFreshToken exchanges the stored refresh token for a new access
// token, joining a refresh already in flight if there is one. It fails
// without any network call when no refresh token is stored.
func (c *Coordinator) EnsureFreshToken(ctx context.Context) error {
	_, err := c.refresh(ctx, "", false)
	return err
}

// refresh is EnsureFreshToken for a request whose token was rejected. With
// checkStale set, a caller whose rejected token has already been replaced
// in the session returns at once: the refresh it needed has happened.
func (c *Coordinator) refresh(ctx context.Context, rejected string, checkStale bool) (coalesced bool, err error) {
	c.mu.Lock()
	if checkStale {
		if current := c.client.session.Token(); current != "" && current != rejected {
			c.mu.Unlock()
			return false, nil
		}
	}
	if f := c.inflight; f != nil {
		f.waiters++
		c.mu.Unlock()
		c.client.metrics.refreshCoalesced.Add(ctx, 1)

		select {
		case <-f.done:
			if f.err != nil {
				c.client.metrics.refreshFailed(ctx, true)
			}
			return true, f.err
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	f.err = c.run(ctx)

	c.mu.Lock()
	c.inflight = nil
	waiters := f.waiters
	c.mu.Unlock()
	close(f.done)

	if f.err != nil {
		c.client.metrics.refreshFailed(ctx, false)
	}
	c.client.log.Debug().Err(f.err).Int("waiters", waiters).Msg("refresh resolved")
	return false, f.err
}

// waiting returns how many callers are attached to the current flight.
func (c *Coordinator) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

// run performs the refresh call. It is detached from the leader's
// cancellation because other callers depend on its outcome.
func (c *Coordinator) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	cl := c.client
	refreshToken, ok, err := cl.store.Get(ctx, credstore.KeyRefreshToken)
	if err != nil {
		cl.log.Warn().Err(err).Msg("failed to read refresh token")
		return fmt.Errorf("%w: %w", ErrNoRefreshToken, err)
	}
	if !ok || refreshToken == "" {
		return ErrNoRefreshToken
	}

	cl.events.Refreshing()
	cl.metrics.refreshCalls.Add(ctx, 1)

	resp, err := cl.send(ctx, Request{
		Method:   http.MethodPost,
		Path:     c.path,
		Body:     map[string]string{"refreshToken": refreshToken},
		SkipAuth: true,
		NoRetry:  true,
	}, "")
	if err != nil {
		cl.events.RefreshFailed(err)
		return fmt.Errorf("refresh request failed: %w", err)
	}
	if resp.status < 200 || resp.status > 299 {
		err := fmt.Errorf("%w: %w", ErrRefreshRejected, newRequestError(resp.status, resp.body))
		cl.events.RefreshFailed(err)
		return err
	}

	var parsed refreshResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		err = fmt.Errorf("%w: failed to parse refresh response: %w", ErrMissingAccessToken, err)
		cl.events.RefreshFailed(err)
		return err
	}
	pair := parsed.pair()
	if pair.AccessToken == "" {
		cl.events.RefreshFailed(ErrMissingAccessToken)
		return ErrMissingAccessToken
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if cl.session.User() == "" {
		cl.events.RefreshFailed(ErrSessionCleared)
		return ErrSessionCleared
	}

	// persistence is best effort; the in-memory session still moves on
	if err := cl.store.Set(ctx, credstore.KeyAccessToken, pair.AccessToken); err != nil {
		cl.log.Warn().Err(err).Msg("failed to persist refreshed access token")
		cl.events.CredentialSaveFailed(err)
	}
	if pair.RefreshToken != "" && pair.RefreshToken != refreshToken {
		if err := cl.store.Set(ctx, credstore.KeyRefreshToken, pair.RefreshToken); err != nil {
			cl.log.Warn().Err(err).Msg("failed to persist rotated refresh token")
			cl.events.CredentialSaveFailed(err)
		}
	}

	cl.session.SetToken(pair.AccessToken)
	cl.events.RefreshOK()
	return nil
}
