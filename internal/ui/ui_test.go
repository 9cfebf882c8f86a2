package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceViewMarksSelf(t *testing.T) {
	out := PresenceView([]string{"alice", "bob"}, "bob")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob (you)")

	assert.Contains(t, PresenceView(nil, "bob"), "Nobody is online")
}

func TestStatsViewListsCountersSorted(t *testing.T) {
	out := StatsView(StatsSummary{
		Online:      2,
		Connections: 3,
		Counters:    map[string]uint64{"relayed": 7, "joins": 2},
	})
	joins := strings.Index(out, "joins")
	relayed := strings.Index(out, "relayed")
	require.True(t, joins >= 0 && relayed >= 0)
	assert.Less(t, joins, relayed)
	assert.Contains(t, out, "connections")
}

func TestPresenceModelFollowsUpdates(t *testing.T) {
	updates := make(chan []string, 1)
	m := NewPresenceModel("alice", "ws://relay/ws", updates)
	assert.Contains(t, m.View(), "Waiting for presence")

	updates <- []string{"alice", "bob"}
	msg := m.listen()()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	assert.Equal(t, []string{"alice", "bob"}, m.Users())
	assert.Contains(t, m.View(), "2 online")

	close(updates)
	_, cmd = m.Update(m.listen()())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.View(), "Connection to relay lost")
}

func TestPresenceModelQuitsOnKey(t *testing.T) {
	m := NewPresenceModel("alice", "ws://relay/ws", make(chan []string))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestFormatChatLine(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)
	line := FormatChatLine("bob", "hi\n", at, false)
	assert.Contains(t, line, "09:30:00")
	assert.Contains(t, line, "bob:")
	assert.True(t, strings.HasSuffix(line, "hi"))
}
