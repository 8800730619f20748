package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"

	"github.com/verval/verval-cli/api"
)

// Displayer abstracts all progress output of a command. It receives the api
// client's refresh notifications as well as the command's own steps.
type Displayer interface {
	api.Events

	Banner(server string)
	SessionRestored(name string)
	SessionMissing()
	LoggingIn(email string)
	LoginOK(name string)
	LoginFailed(err error)
	LoggedOut()
	Loading(what string)
	Loaded(what string)
	RequestFailed(err error)
	Done(summary string)
	Fatal(err error)
}

var (
	_ Displayer = (*PlainDisplayer)(nil)
	_ Displayer = NoopDisplayer{}
	_ Displayer = (*ProgramDisplayer)(nil)
)

// PlainDisplayer writes plain text lines to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty) or --plain is set.
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner(server string) {
	fmt.Fprintf(p.w, "verval @ %s\n", server)
}

func (p *PlainDisplayer) SessionRestored(name string) {
	fmt.Fprintf(p.w, "Session restored for %s\n", name)
}

func (p *PlainDisplayer) SessionMissing() {
	fmt.Fprintln(p.w, "No stored session")
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(name string) {
	fmt.Fprintf(p.w, "Logged in as %s\n", name)
}

func (p *PlainDisplayer) LoginFailed(err error) {
	fmt.Fprintf(p.w, "Login failed: %v\n", err)
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out, stored credentials removed")
}

func (p *PlainDisplayer) Loading(what string) {
	fmt.Fprintf(p.w, "Loading %s...\n", what)
}

func (p *PlainDisplayer) Loaded(string) {}

func (p *PlainDisplayer) RequestFailed(err error) {
	fmt.Fprintf(p.w, "Request failed: %v\n", err)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	fmt.Fprintln(p.w, "Token refreshed, retrying request...")
}

func (p *PlainDisplayer) CredentialSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: Failed to save credentials: %v\n", err)
}

func (p *PlainDisplayer) SessionCleared() {
	fmt.Fprintln(p.w, "Session expired, please log in again")
}

func (p *PlainDisplayer) Done(summary string) {
	if summary != "" {
		fmt.Fprintln(p.w, summary)
	}
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{ api.NoopEvents }

func (NoopDisplayer) Banner(_ string)          {}
func (NoopDisplayer) SessionRestored(_ string) {}
func (NoopDisplayer) SessionMissing()          {}
func (NoopDisplayer) LoggingIn(_ string)       {}
func (NoopDisplayer) LoginOK(_ string)         {}
func (NoopDisplayer) LoginFailed(_ error)      {}
func (NoopDisplayer) LoggedOut()               {}
func (NoopDisplayer) Loading(_ string)         {}
func (NoopDisplayer) Loaded(_ string)          {}
func (NoopDisplayer) RequestFailed(_ error)    {}
func (NoopDisplayer) Done(_ string)            {}
func (NoopDisplayer) Fatal(_ error)            {}

// sender is the part of *tea.Program the ProgramDisplayer needs.
type sender interface {
	Send(msg tea.Msg)
}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
// It is safe for concurrent use; tea.Program serializes Send.
type ProgramDisplayer struct {
	p sender
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner(server string) {
	t.p.Send(MsgBanner{Server: server})
}

func (t *ProgramDisplayer) SessionRestored(name string) {
	t.p.Send(MsgSessionRestored{Name: name})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(name string) {
	t.p.Send(MsgLoginOK{Name: name})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Loading(what string) {
	t.p.Send(MsgLoading{What: what})
}

func (t *ProgramDisplayer) Loaded(what string) {
	t.p.Send(MsgLoaded{What: what})
}

func (t *ProgramDisplayer) RequestFailed(err error) {
	t.p.Send(MsgRequestFailed{Err: err})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) CredentialSaveFailed(err error) {
	t.p.Send(MsgCredentialSaveFailed{Err: err})
}

func (t *ProgramDisplayer) SessionCleared() {
	t.p.Send(MsgSessionCleared{})
}

func (t *ProgramDisplayer) Done(summary string) {
	t.p.Send(MsgDone{Summary: summary})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
