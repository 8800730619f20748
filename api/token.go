package api

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenClaims is what the client can read from a JWT access token without
// the server's key. Opaque tokens have no claims.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectToken decodes the claims of a JWT access token without verifying
// its signature; the server does that. ok is false for opaque tokens.
func InspectToken(token string) (TokenClaims, bool) {
	if token == "" {
		return TokenClaims{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, false
	}
	out := TokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, true
}

// expiringSoon reports whether token carries an exp claim that falls within
// the configured skew.
func (c *Client) expiringSoon(token string) bool {
	claims, ok := InspectToken(token)
	if !ok || claims.ExpiresAt.IsZero() {
		return false
	}
	return !c.now().Add(c.cfg.ExpirySkew).Before(claims.ExpiresAt)
}

// TokenSource exposes the session's access token as an oauth2.TokenSource,
// refreshing first when the session has none or it is about to expire.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, client: c}
}

type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	token := c.session.Token()
	if token == "" || c.expiringSoon(token) {
		if _, err := c.coord.refresh(s.ctx, token, true); err != nil {
			return nil, err
		}
		token = c.session.Token()
	}

	tok := &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}
	if claims, ok := InspectToken(token); ok {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}
