package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// PresenceView renders the online identities as a table. self, when present
// in users, is highlighted.
func PresenceView(users []string, self string) string {
	if len(users) == 0 {
		return MutedStyle.Render("Nobody is online")
	}

	rows := make([][]string, 0, len(users))
	for i, u := range users {
		name := u
		if u == self {
			name += " (you)"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), name})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Online").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row >= 0 && row < len(users) && users[row] == self:
				return tableCellStyle.Inherit(SelfStyle)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderPresence(users []string, self string) {
	fmt.Println(PresenceView(users, self))
}

// StatsSummary is what the relay reports on /stats.
type StatsSummary struct {
	Online      int
	Connections int
	Counters    map[string]uint64
}

// StatsView renders relay counters as a plain table.
func StatsView(s StatsSummary) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.SetTitle(IconStats + " Relay Stats")
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRow(prettytable.Row{"online", s.Online})
	t.AppendRow(prettytable.Row{"connections", s.Connections})
	t.AppendSeparator()

	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(prettytable.Row{name, s.Counters[name]})
	}

	return t.Render()
}

func RenderStats(s StatsSummary) {
	fmt.Println(StatsView(s))
}

// FormatChatLine renders one received or sent chat line.
func FormatChatLine(from, body string, at time.Time, mine bool) string {
	style := BoldStyle.Foreground(Primary)
	if mine {
		style = SelfStyle
	}
	return fmt.Sprintf("%s %s %s",
		MutedStyle.Render(at.Format("15:04:05")),
		style.Render(from+":"),
		strings.TrimRight(body, "\n"),
	)
}
