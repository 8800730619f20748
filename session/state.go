// Package session holds the in-memory record of who is logged in and which
// bearer token the request layer should attach.
package session

import "sync"

// State is the process-wide session: the current user id and access token.
// An empty string means absent. Reads never observe a partially applied
// Clear; otherwise the two fields are independent and last write wins.
//
// Only the authentication flows (login, logout, refresh, bootstrap) write to
// it; everything else reads.
type State struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// New returns an empty (logged out) session.
func New() *State {
	return &State{}
}

// SetUser overwrites the current user id.
func (s *State) SetUser(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// SetToken overwrites the current access token.
func (s *State) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Set replaces both fields at once. Used by login and bootstrap.
func (s *State) Set(userID, token string) {
	s.mu.Lock()
	s.userID = userID
	s.token = token
	s.mu.Unlock()
}

// User returns the current user id, or "" when logged out.
func (s *State) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Token returns the current access token, or "".
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear drops both the user and the token.
func (s *State) Clear() {
	s.Set("", "")
}

// LoggedIn reports whether a user is set. A user with an empty token is
// still logged in: the next request will trigger a refresh.
func (s *State) LoggedIn() bool {
	return s.User() != ""
}
