package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the elapsed timer.
type tickMsg time.Time

// state represents the current phase of a command.
type state int

const (
	stateInit       state = iota
	stateLoggingIn        // login request in flight
	stateLoading          // backend call in flight
	stateRefreshing       // refreshing the access token
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model rendering command progress on stderr.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	server  string
	what    string
	started time.Time
	elapsed time.Duration
	// now is replaceable in tests.
	now func() time.Time

	summary string
	errMsg  string

	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
		now:     time.Now,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state != stateLoading && m.state != stateRefreshing {
			return m, nil
		}
		m.elapsed = m.now().Sub(m.started)
		return m, tickAfterSecond()

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case MsgBanner:
		m.server = msg.Server
		return m, nil

	case MsgSessionRestored:
		m.addStatus(statusOK, "Session restored for "+msg.Name)
		return m, nil

	case MsgSessionMissing:
		m.addStatus(statusInfo, "No stored session")
		return m, nil

	case MsgLoggingIn:
		m.state = stateLoggingIn
		m.addStatus(statusInfo, "Logging in as "+msg.Email)
		return m, nil

	case MsgLoginOK:
		m.addStatus(statusOK, "Logged in as "+msg.Name)
		return m, nil

	case MsgLoginFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Login failed: %v", msg.Err))
		return m, nil

	case MsgLoggedOut:
		m.addStatus(statusOK, "Logged out, stored credentials removed")
		return m, nil

	case MsgLoading:
		m.state = stateLoading
		m.what = msg.What
		m.started = m.now()
		m.elapsed = 0
		return m, tickAfterSecond()

	case MsgLoaded:
		m.addStatus(statusOK, "Loaded "+msg.What)
		return m, nil

	case MsgRequestFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Request failed: %v", msg.Err))
		return m, nil

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		return m, nil

	case MsgRefreshOK:
		m.state = stateLoading
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.addStatus(statusInfo, "Retrying request with the new token")
		return m, nil

	case MsgCredentialSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save credentials: %v", msg.Err))
		return m, nil

	case MsgSessionCleared:
		m.addStatus(statusWarn, "Session expired, please log in again")
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  verval  "))
	if m.server != "" {
		b.WriteString("  ")
		b.WriteString(styleDim.Render(m.server))
	}
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	switch m.state {
	case stateLoggingIn:
		b.WriteString(" Logging in...")
	case stateRefreshing:
		b.WriteString(" Refreshing access token...")
	case stateLoading:
		b.WriteString(" Loading " + m.what + "...")
		if m.elapsed >= time.Second {
			b.WriteString("  ")
			b.WriteString(styleDim.Render(formatDuration(m.elapsed)))
		}
	default:
		b.WriteString(" Starting...")
	}
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Done"))
	if m.summary != "" {
		b.WriteString("  ")
		b.WriteString(styleBold.Render(m.summary))
	}
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
