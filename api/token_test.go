package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verval/verval-cli/credstore"
)

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, ok := InspectToken(signedToken(t, exp))
	require.True(t, ok)
	require.Equal(t, "u-1", claims.Subject)
	require.True(t, exp.Equal(claims.ExpiresAt))

	_, ok = InspectToken("opaque-token")
	require.False(t, ok)

	_, ok = InspectToken("")
	require.False(t, ok)
}

func TestExpiringSoon(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Client{cfg: Config{ExpirySkew: 10 * time.Second}, now: func() time.Time { return now }}

	require.True(t, c.expiringSoon(signedToken(t, now.Add(-time.Second))))
	require.True(t, c.expiringSoon(signedToken(t, now.Add(5*time.Second))))
	require.False(t, c.expiringSoon(signedToken(t, now.Add(time.Minute))))
	require.False(t, c.expiringSoon("A1"))
}

func TestTokenSource(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	fresh := signedToken(t, time.Now().Add(time.Hour))
	f.session.SetToken(fresh)

	tok, err := f.client.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, fresh, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.False(t, tok.Expiry.IsZero())
	require.EqualValues(t, 0, b.refreshCalls.Load())
}

func TestTokenSourceRefreshesWhenEmpty(t *testing.T) {
	b := newBackend(t)
	f := newFixture(t, b)
	f.session.SetToken("")

	tok, err := f.client.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, "A2", tok.AccessToken)
	require.True(t, tok.Expiry.IsZero())
	require.EqualValues(t, 1, b.refreshCalls.Load())
}

func TestTokenSourceRefreshFailure(t *testing.T) {
	b := newBackend(t)
	b.onRefresh(func(w http.ResponseWriter, _ string) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
	})
	f := newFixture(t, b)
	f.session.SetToken(signedToken(t, time.Now().Add(-time.Hour)))

	_, err := f.client.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, ErrRefreshRejected)

	// a token source only reports; clearing is left to the request path
	_, ok := f.stored(t, credstore.KeyRefreshToken)
	require.True(t, ok)
}
