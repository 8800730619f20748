// Package auth implements the login, logout and session restore flows on top
// of the api client and the credential store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/credstore"
)

const loginPath = "/api/usuarios/login"

var (
	// ErrEmptyCredentials is returned by Login before any network call.
	ErrEmptyCredentials = errors.New("email and password are required")

	// ErrMissingUser means the login endpoint answered 2xx without a user.
	ErrMissingUser = errors.New("login response has no user")
)

// Profile is the role derived from User.IsAdmin.
type Profile string

const (
	ProfileAdmin Profile = "admin"
	ProfileUser  Profile = "usuario"
)

// User is the logged-in account as the backend describes it.
type User struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"nome"`
	Email   string `json:"email"`
	Phone   string `json:"telefone,omitempty"`
	Status  string `json:"status,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// Profile returns ProfileAdmin for administrators and ProfileUser otherwise.
func (u User) Profile() Profile {
	if u.IsAdmin {
		return ProfileAdmin
	}
	return ProfileUser
}

// loginPayload is one level of a login answer. The backend has sent the
// user as "usuario" or "user", the access token as "accessToken" or "token",
// and sometimes wrapped everything in "data".
type loginPayload struct {
	Usuario      *User  `json:"usuario"`
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	loginPayload
	Data *loginPayload `json:"data"`
}

func (r loginResponse) payload() loginPayload {
	if r.Data != nil {
		return *r.Data
	}
	return r.loginPayload
}

func (p loginPayload) user() *User {
	if p.Usuario != nil {
		return p.Usuario
	}
	return p.User
}

func (p loginPayload) accessToken() string {
	if p.AccessToken != "" {
		return p.AccessToken
	}
	return p.Token
}

// Manager owns the session lifecycle.
type Manager struct {
	client *api.Client
	store  credstore.Store
	log    zerolog.Logger
}

// NewManager returns a Manager writing to client's session and to store.
func NewManager(client *api.Client, store credstore.Store, log zerolog.Logger) *Manager {
	return &Manager{client: client, store: store, log: log}
}

// Login authenticates with email and password. On success the session holds
// the user and access token and both tokens plus the user profile are
// persisted; a token the server did not return is deleted from the store.
// A store failure is logged and reported but does not fail the login.
//
// With remember set the email (never the password) is kept for the next
// login prompt; without it any remembered email is forgotten.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	var resp loginResponse
	err := m.client.Do(ctx, api.Request{
		Method:   http.MethodPost,
		Path:     loginPath,
		Body:     map[string]string{"email": email, "senha": password},
		SkipAuth: true,
		NoRetry:  true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	p := resp.payload()
	user := p.user()
	if user == nil {
		return nil, ErrMissingUser
	}

	m.client.Session().Set(user.ID, p.accessToken())

	// the session is usable even when the store is not
	if err := m.persist(ctx, user, p); err != nil {
		m.log.Warn().Err(err).Msg("failed to save credentials")
		m.client.Events().CredentialSaveFailed(err)
	}

	if err := m.remember(ctx, email, remember); err != nil {
		// the login itself succeeded
		m.log.Warn().Err(err).Msg("failed to update remembered email")
	}

	m.log.Debug().Str("user_id", user.ID).Bool("refresh_token", p.RefreshToken != "").Msg("logged in")
	return user, nil
}

// persist writes the user profile and both tokens, attempting every key.
func (m *Manager) persist(ctx context.Context, user *User, p loginPayload) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	var errs []error
	if err := m.store.Set(ctx, credstore.KeyUser, string(userJSON)); err != nil {
		errs = append(errs, fmt.Errorf("failed to save user: %w", err))
	}
	if err := m.setOrDelete(ctx, credstore.KeyAccessToken, p.accessToken()); err != nil {
		errs = append(errs, fmt.Errorf("failed to save access token: %w", err))
	}
	if err := m.setOrDelete(ctx, credstore.KeyRefreshToken, p.RefreshToken); err != nil {
		errs = append(errs, fmt.Errorf("failed to save refresh token: %w", err))
	}
	return errors.Join(errs...)
}

func (m *Manager) setOrDelete(ctx context.Context, key credstore.Key, value string) error {
	if value == "" {
		return m.store.Delete(ctx, key)
	}
	return m.store.Set(ctx, key, value)
}

func (m *Manager) remember(ctx context.Context, email string, remember bool) error {
	if !remember {
		if err := m.store.Set(ctx, credstore.KeyRememberFlag, "0"); err != nil {
			return err
		}
		return m.store.Delete(ctx, credstore.KeyRememberedEmail)
	}
	if err := m.store.Set(ctx, credstore.KeyRememberFlag, "1"); err != nil {
		return err
	}
	return m.store.Set(ctx, credstore.KeyRememberedEmail, email)
}

// RememberedEmail returns the email saved by a remembered login.
func (m *Manager) RememberedEmail(ctx context.Context) (string, bool, error) {
	flag, ok, err := m.store.Get(ctx, credstore.KeyRememberFlag)
	if err != nil || !ok || flag != "1" {
		return "", false, err
	}
	email, ok, err := m.store.Get(ctx, credstore.KeyRememberedEmail)
	if err != nil || !ok || email == "" {
		return "", false, err
	}
	return email, true, nil
}

// Logout clears the session and deletes the stored tokens and user. The
// remembered email survives.
func (m *Manager) Logout(ctx context.Context) error {
	m.client.Session().Clear()
	if err := credstore.DeleteAll(ctx, m.store, credstore.SessionKeys...); err != nil {
		return fmt.Errorf("failed to delete stored credentials: %w", err)
	}
	return nil
}

// Bootstrap restores a saved session into memory. It returns nil, nil when
// nothing usable is stored.
//
// A stored user with at least one token is restored. When only the refresh
// token survived, a silent refresh is attempted; its failure leaves the
// restored state alone so the first request can try again.
func (m *Manager) Bootstrap(ctx context.Context) (*User, error) {
	sess := m.client.Session()

	user, err := m.StoredUser(ctx)
	if err != nil {
		return nil, err
	}
	access, _, err := m.store.Get(ctx, credstore.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, _, err := m.store.Get(ctx, credstore.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	if user == nil || (access == "" && refresh == "") {
		sess.Clear()
		return nil, nil
	}

	sess.Set(user.ID, access)
	m.log.Debug().Str("user_id", user.ID).Bool("access_token", access != "").Msg("session restored")

	if access == "" {
		if err := m.client.Coordinator().EnsureFreshToken(ctx); err != nil {
			m.log.Info().Err(err).Msg("silent refresh failed")
		}
	}
	return user, nil
}

// StoredUser returns the persisted user profile, or nil when there is none
// or it cannot be decoded.
func (m *Manager) StoredUser(ctx context.Context) (*User, error) {
	raw, ok, err := m.store.Get(ctx, credstore.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.log.Warn().Err(err).Msg("stored user is corrupted, ignoring")
		return nil, nil
	}
	return &user, nil
}

// RefreshSession exchanges the stored refresh token for a new access token.
func (m *Manager) RefreshSession(ctx context.Context) error {
	return m.client.Coordinator().EnsureFreshToken(ctx)
}
