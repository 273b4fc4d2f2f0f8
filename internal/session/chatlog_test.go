package session

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pollroom/pkg/types"
)

func TestChatLog_AppendStampsAndNormalizes(t *testing.T) {
	req := require.New(t)
	log := NewChatLog(DefaultMaxHistory, DefaultMaxTextLength)
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	stored := log.Append(types.ChatMessage{Sender: "Alice", Text: strings.Repeat("x", 600)})
	req.NotEmpty(stored.ID)
	req.Equal(fixed, stored.Timestamp)
	req.Len([]rune(stored.Text), DefaultMaxTextLength)

	// A provided timestamp is kept
	earlier := fixed.Add(-time.Minute)
	stored = log.Append(types.ChatMessage{Sender: "Bob", Text: "hi", Timestamp: earlier})
	req.Equal(earlier, stored.Timestamp)
}

func TestChatLog_RoundTrip(t *testing.T) {
	req := require.New(t)
	log := NewChatLog(200, 500)

	var expected []string
	for i := 0; i < 150; i++ {
		text := fmt.Sprintf("message %d", i)
		expected = append(expected, text)
		log.Append(types.ChatMessage{Sender: "Alice", Text: text})
	}

	history := log.History()
	req.Len(history, 150)
	for i, msg := range history {
		req.Equal(expected[i], msg.Text)
	}
}

func TestChatLog_EvictsOldestFirst(t *testing.T) {
	req := require.New(t)
	log := NewChatLog(200, 500)

	for i := 0; i < 250; i++ {
		log.Append(types.ChatMessage{Sender: "Alice", Text: fmt.Sprintf("message %d", i)})
		req.LessOrEqual(log.Len(), 200)
	}

	history := log.History()
	req.Len(history, 200)
	req.Equal("message 50", history[0].Text)
	req.Equal("message 249", history[199].Text)
}

func TestChatLog_HistoryIsSnapshot(t *testing.T) {
	log := NewChatLog(10, 500)
	log.System("Alice joined")

	history := log.History()
	history[0].Text = "tampered"

	require.Equal(t, "Alice joined", log.History()[0].Text)
	require.True(t, log.History()[0].IsSystem)
}

func TestChatLog_Defaults(t *testing.T) {
	log := NewChatLog(0, 0)
	require.Equal(t, DefaultMaxHistory, log.maxHistory)
	require.Equal(t, DefaultMaxTextLength, log.maxTextLength)
}
