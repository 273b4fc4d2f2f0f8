package types

import (
	"time"
)

// Inbound event names sent by clients over the transport.
// EventDisconnect is produced by the transport itself when a connection drops.
const (
	EventIdentifyInstructor  = "identify-instructor"
	EventRegisterParticipant = "register-participant"
	EventCreatePoll          = "create-poll"
	EventSubmitAnswer        = "submit-answer"
	EventEndPoll             = "end-poll"
	EventInstructorMessage   = "instructor-message"
	EventParticipantMessage  = "participant-message"
	EventRemoveParticipant   = "remove-participant"
	EventDisconnect          = "disconnect"
)

// Outbound event names delivered through the Broadcaster
const (
	EventPollCreated         = "poll-created"
	EventPollEnded           = "poll-ended"
	EventResultsUpdated      = "results-updated"
	EventParticipationUpdate = "participation-update"
	EventAllAnswered         = "all-answered"
	EventRosterUpdated       = "roster-updated"
	EventChatMessage         = "chat-message"
	EventChatHistory         = "chat-history"
	EventAnswerStatus        = "answer-status"
	EventForcedDisconnect    = "forced-disconnect"
	EventChatRateLimited     = "chat-rate-limited"

	// EventAck carries the reply to a frame that requested one
	EventAck = "ack"
)

// Reasons attached to poll-ended
const (
	PollEndedByInstructor = "ended"
	PollEndedExpired      = "expired"
)

// Participant is a connection registered under a display name.
// FUNCTIONAL DISCOVERY: Names are unique across current participants, exact and case-sensitive
type Participant struct {
	ConnectionID string    `json:"-"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Poll is the question currently accepting answers.
// Options are trimmed, non-empty and unique; CorrectAnswers is a subset of Options.
type Poll struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	Options          []string  `json:"options"`
	CorrectAnswers   []string  `json:"correctAnswers,omitempty"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	CreatedAt        time.Time `json:"createdAt"`
	EndsAt           time.Time `json:"endsAt"`
}

// Public returns a copy of the poll safe to show participants while it is running
func (p Poll) Public() Poll {
	p.Options = append([]string(nil), p.Options...)
	p.CorrectAnswers = nil
	return p
}

// IsCorrect reports whether answer is one of the configured correct answers
func (p Poll) IsCorrect(answer string) bool {
	for _, correct := range p.CorrectAnswers {
		if correct == answer {
			return true
		}
	}
	return false
}

// ChatMessage is one entry of the shared chat feed.
// Ordering is arrival order at the hub, not client send time.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsSystem  bool      `json:"isSystem"`
}

// Results is the payload of results-updated
type Results struct {
	PollID         string         `json:"pollId"`
	Percentages    map[string]int `json:"percentages"`
	TotalResponses int            `json:"totalResponses"`
}

// Participation is the payload of participation-update
type Participation struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ParticipantStatus describes one participant in answer-status
type ParticipantStatus struct {
	Name     string `json:"name"`
	Answered bool   `json:"answered"`
	Answer   string `json:"answer,omitempty"`
}

// AnswerStatus is the instructor-only view of who has answered the current poll
type AnswerStatus struct {
	PollID        string              `json:"pollId"`
	Participants  []ParticipantStatus `json:"participants"`
	Participation Participation       `json:"participation"`
}

// PollEnded is the payload of poll-ended. The poll is sent in full, correct answers included.
type PollEnded struct {
	Poll        Poll           `json:"poll"`
	Percentages map[string]int `json:"percentages"`
	Reason      string         `json:"reason"`
}

// AllAnswered is the payload of all-answered
type AllAnswered struct {
	PollID      string         `json:"pollId"`
	Question    string         `json:"question"`
	Percentages map[string]int `json:"percentages"`
}

// Roster is the payload of roster-updated
type Roster struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// ForcedDisconnect is sent to a participant right before the instructor removes it
type ForcedDisconnect struct {
	Reason string `json:"reason"`
}

// ChatRateLimited tells a participant how long to wait before chatting again
type ChatRateLimited struct {
	RetryAfterMs int64 `json:"retryAfterMs"`
}

// Snapshot is the full session state handed to a newly identified instructor
// and served by the read-only HTTP API.
type Snapshot struct {
	Poll              *Poll          `json:"poll"`
	Percentages       map[string]int `json:"percentages"`
	Participation     Participation  `json:"participation"`
	ChatHistory       []ChatMessage  `json:"chatHistory"`
	Roster            []string       `json:"roster"`
	InstructorPresent bool           `json:"instructorPresent"`
}

// Reply is the one-shot result of a command, sent back to the requesting connection
type Reply struct {
	OK          bool         `json:"ok"`
	Error       string       `json:"error,omitempty"`
	Code        ErrorKind    `json:"code,omitempty"`
	Poll        *Poll        `json:"poll,omitempty"`
	IsCorrect   *bool        `json:"isCorrect,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	State       *Snapshot    `json:"state,omitempty"`
}

// OKReply returns a successful reply with no extra fields
func OKReply() Reply {
	return Reply{OK: true}
}

// ErrorReply converts err into a failed reply
func ErrorReply(err error) Reply {
	return Reply{OK: false, Error: err.Error(), Code: KindOf(err)}
}

// Frame is the JSON envelope exchanged over the transport in both directions.
// Ack is set by clients that want a reply and echoed back on the ack frame.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   *int64 `json:"ack,omitempty"`
}
