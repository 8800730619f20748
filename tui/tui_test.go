package tui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.Banner("https://api.example.com")
	d.SessionRestored("Ana")
	d.AccessTokenRejected()
	d.Refreshing()
	d.RefreshOK()
	d.TokenRefreshedRetrying()
	d.CredentialSaveFailed(errors.New("disk full"))
	d.Loaded("ignored")
	d.Done("")
	d.Done("3 transactions")
	d.Fatal(errors.New("boom"))

	want := []string{
		"verval @ https://api.example.com",
		"Session restored for Ana",
		"Access token rejected (401), refreshing...",
		"Refreshing access token...",
		"Token refreshed successfully!",
		"Token refreshed, retrying request...",
		"Warning: Failed to save credentials: disk full",
		"3 transactions",
		"Error: boom",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestProgramDisplayerSendsMessages(t *testing.T) {
	rec := &recordingSender{}
	d := &ProgramDisplayer{p: rec}
	failure := errors.New("nope")

	d.LoggingIn("ana@x.com")
	d.LoginFailed(failure)
	d.SessionCleared()
	d.Done("ok")

	want := []tea.Msg{
		MsgLoggingIn{Email: "ana@x.com"},
		MsgLoginFailed{Err: failure},
		MsgSessionCleared{},
		MsgDone{Summary: "ok"},
	}
	if len(rec.msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(rec.msgs), len(want))
	}
	for i := range want {
		if rec.msgs[i] != want[i] {
			t.Errorf("msg %d = %#v, want %#v", i, rec.msgs[i], want[i])
		}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model
}

func TestModelRefreshFlow(t *testing.T) {
	m := NewModel()
	m = update(t, m, MsgBanner{Server: "http://localhost:3333"})
	m = update(t, m, MsgLoading{What: "transactions"})
	if m.state != stateLoading {
		t.Fatalf("state = %d, want loading", m.state)
	}
	if !strings.Contains(m.viewMain(), "Loading transactions...") {
		t.Errorf("view missing loading line:\n%s", m.viewMain())
	}

	m = update(t, m, MsgAccessTokenRejected{})
	m = update(t, m, MsgRefreshing{})
	if m.state != stateRefreshing {
		t.Fatalf("state = %d, want refreshing", m.state)
	}
	m = update(t, m, MsgRefreshOK{})
	if m.state != stateLoading {
		t.Fatalf("state = %d, want loading after refresh", m.state)
	}
	m = update(t, m, MsgDone{Summary: "3 transactions"})
	if m.state != stateSuccess {
		t.Fatalf("state = %d, want success", m.state)
	}

	view := m.viewSuccess()
	for _, s := range []string{"3 transactions", "Access token rejected", "Token refreshed successfully"} {
		if !strings.Contains(view, s) {
			t.Errorf("success view missing %q:\n%s", s, view)
		}
	}
}

func TestModelFatal(t *testing.T) {
	m := update(t, NewModel(), MsgFatal{Err: errors.New("session expired")})
	if m.state != stateError {
		t.Fatalf("state = %d, want error", m.state)
	}
	if !strings.Contains(m.viewError(), "session expired") {
		t.Errorf("error view missing message:\n%s", m.viewError())
	}
}

func TestModelElapsedTick(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	m := NewModel()
	m.now = func() time.Time { return clock }

	m = update(t, m, MsgLoading{What: "dashboard"})
	clock = start.Add(3 * time.Second)
	m = update(t, m, tickMsg(clock))
	if m.elapsed != 3*time.Second {
		t.Fatalf("elapsed = %s, want 3s", m.elapsed)
	}
	if !strings.Contains(m.viewMain(), "3s") {
		t.Errorf("view missing elapsed time:\n%s", m.viewMain())
	}

	m = update(t, m, MsgDone{})
	_, cmd := m.Update(tickMsg(clock))
	if cmd != nil {
		t.Error("tick should stop once the command is done")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{1400 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{10 * time.Minute, "10m 0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResultPlain(t *testing.T) {
	r := Result{
		Title:   "Transactions",
		Fields:  []Field{{"User", "Ana"}, {"Period", "2024-03-01..2024-03-05"}},
		Headers: []string{"ID", "Name", "Amount"},
		Rows: [][]string{
			{"t1", "Venda", "R$ 10,00"},
			{"t2", "Aluguel", "-R$ 900,00"},
		},
	}
	out := r.String(false)

	for _, s := range []string{"Transactions\n", "User:   Ana\n", "Period: 2024-03-01..2024-03-05\n", "Venda", "-R$ 900,00", "|"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
	if strings.Index(out, "t1") > strings.Index(out, "t2") {
		t.Error("rows out of order")
	}
}

func TestResultEmpty(t *testing.T) {
	r := Result{Headers: []string{"ID"}, Empty: "No transactions"}
	var buf bytes.Buffer
	if err := r.Render(&buf, true); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No transactions\n" {
		t.Errorf("got %q", buf.String())
	}

	if got := (Result{Fields: []Field{{"Token", "valid"}}}).String(false); got != "Token: valid\n" {
		t.Errorf("fields only = %q", got)
	}
}
