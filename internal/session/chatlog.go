package session

import (
	"time"

	"github.com/google/uuid"
	"pollroom/pkg/types"
)

const (
	// DefaultMaxHistory is the number of chat messages retained
	DefaultMaxHistory = 200
	// DefaultMaxTextLength is the longest chat text kept, in runes
	DefaultMaxTextLength = 500
)

// ChatLog is a bounded append-only log of chat messages.
// FUNCTIONAL DISCOVERY: Oldest entries are evicted first once the bound is exceeded
type ChatLog struct {
	messages      []types.ChatMessage
	maxHistory    int
	maxTextLength int
	now           func() time.Time
}

// NewChatLog creates a log retaining at most maxHistory messages of at most
// maxTextLength runes each. Non-positive values fall back to the defaults.
func NewChatLog(maxHistory, maxTextLength int) *ChatLog {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return &ChatLog{
		messages:      make([]types.ChatMessage, 0, maxHistory),
		maxHistory:    maxHistory,
		maxTextLength: maxTextLength,
		now:           time.Now,
	}
}

// Append normalizes and stores msg, returning the stored copy for broadcasting
func (c *ChatLog) Append(msg types.ChatMessage) types.ChatMessage {
	msg.Text = types.Truncate(msg.Text, c.maxTextLength)
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}

	c.messages = append(c.messages, msg)
	if over := len(c.messages) - c.maxHistory; over > 0 {
		copy(c.messages, c.messages[over:])
		c.messages = c.messages[:c.maxHistory]
	}
	return msg
}

// System appends a system-generated message
func (c *ChatLog) System(text string) types.ChatMessage {
	return c.Append(types.ChatMessage{Sender: "System", Text: text, IsSystem: true})
}

// History returns a copy of the retained messages in arrival order
func (c *ChatLog) History() []types.ChatMessage {
	history := make([]types.ChatMessage, len(c.messages))
	copy(history, c.messages)
	return history
}

// Len returns the number of retained messages
func (c *ChatLog) Len() int {
	return len(c.messages)
}
