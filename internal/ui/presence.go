package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type usersMsg []string

type disconnectedMsg struct{}

// PresenceModel is a live view of who is online. It reads presence lists
// from a channel until the channel is closed or the user quits.
type PresenceModel struct {
	self      string
	server    string
	users     []string
	updates   <-chan []string
	spinner   spinner.Model
	updatedAt time.Time
	seen      bool
	gone      bool
	quitting  bool
}

func NewPresenceModel(self, server string, updates <-chan []string) *PresenceModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &PresenceModel{
		self:    self,
		server:  server,
		updates: updates,
		spinner: s,
	}
}

// RunPresence blocks until the live view exits.
func RunPresence(self, server string, updates <-chan []string) error {
	_, err := tea.NewProgram(NewPresenceModel(self, server, updates)).Run()
	return err
}

func (m *PresenceModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *PresenceModel) listen() tea.Cmd {
	return func() tea.Msg {
		users, ok := <-m.updates
		if !ok {
			return disconnectedMsg{}
		}
		return usersMsg(users)
	}
}

func (m *PresenceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case usersMsg:
		m.users = msg
		m.seen = true
		m.updatedAt = time.Now()
		return m, m.listen()

	case disconnectedMsg:
		m.gone = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Users returns the last list shown.
func (m *PresenceModel) Users() []string { return m.users }

func (m *PresenceModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%s Connected to %s as %s\n\n",
		IconConnect, MutedStyle.Render(m.server), SelfStyle.Render(m.self)))

	switch {
	case m.gone:
		b.WriteString(ErrorStyle.Render("Connection to relay lost") + "\n")
	case !m.seen:
		b.WriteString(fmt.Sprintf("%s Waiting for presence...\n", m.spinner.View()))
	default:
		b.WriteString(fmt.Sprintf("%s %d online  %s\n",
			IconOnline, len(m.users),
			MutedStyle.Render("updated "+m.updatedAt.Format("15:04:05"))))
		b.WriteString(PresenceView(m.users, m.self) + "\n")
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to quit"))
	return b.String()
}
