package types

import (
	"encoding/json"
	"fmt"
)

// Command is one decoded inbound event. Each variant carries its own payload type;
// decoding happens once at the transport boundary.
type Command interface {
	EventName() string
}

type IdentifyInstructor struct {
	Secret string `json:"secret"`
}

type RegisterParticipant struct {
	Name string `json:"name"`
}

type CreatePoll struct {
	Question         string   `json:"question" validate:"required"`
	Options          []string `json:"options" validate:"min=2"`
	CorrectAnswers   []string `json:"correctAnswers,omitempty"`
	TimeLimitSeconds float64  `json:"timeLimitSeconds,omitempty"`
}

// SubmitAnswer carries the poll question as PollID; it is only used to detect
// answers aimed at a poll that is no longer the active one.
// ParticipantName is informational, identity comes from the connection.
type SubmitAnswer struct {
	Answer          string `json:"answer"`
	ParticipantName string `json:"participantName"`
	PollID          string `json:"pollId"`
}

type EndPoll struct{}

type InstructorMessage struct {
	Text string `json:"text"`
}

type ParticipantMessage struct {
	Text string `json:"text"`
}

type RemoveParticipant struct {
	Name string `json:"name"`
}

// Disconnect is produced by the transport when a connection goes away
type Disconnect struct{}

func (IdentifyInstructor) EventName() string  { return EventIdentifyInstructor }
func (RegisterParticipant) EventName() string { return EventRegisterParticipant }
func (CreatePoll) EventName() string          { return EventCreatePoll }
func (SubmitAnswer) EventName() string        { return EventSubmitAnswer }
func (EndPoll) EventName() string             { return EventEndPoll }
func (InstructorMessage) EventName() string   { return EventInstructorMessage }
func (ParticipantMessage) EventName() string  { return EventParticipantMessage }
func (RemoveParticipant) EventName() string   { return EventRemoveParticipant }
func (Disconnect) EventName() string          { return EventDisconnect }

// Validate checks the structural shape of a poll request.
// Cleaning (trimming, dropping empties, deduplication) happens when the poll is built.
func (c CreatePoll) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPollSpec, err)
	}
	return nil
}

// DecodeCommand turns a named event and its raw JSON payload into a Command.
// identify-instructor and remove-participant accept either a bare JSON string
// or an object. disconnect is never accepted from a client.
func DecodeCommand(event string, data json.RawMessage) (Command, error) {
	switch event {
	case EventIdentifyInstructor:
		var cmd IdentifyInstructor
		if err := decodeStringOrObject(data, &cmd.Secret, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventRegisterParticipant:
		var cmd RegisterParticipant
		if err := decodeObject(data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventCreatePoll:
		var cmd CreatePoll
		if err := decodeObject(data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventSubmitAnswer:
		var cmd SubmitAnswer
		if err := decodeObject(data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventEndPoll:
		return EndPoll{}, nil
	case EventInstructorMessage:
		var cmd InstructorMessage
		if err := decodeObject(data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventParticipantMessage:
		var cmd ParticipantMessage
		if err := decodeObject(data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventRemoveParticipant:
		var cmd RemoveParticipant
		if err := decodeStringOrObject(data, &cmd.Name, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

func decodeObject(data json.RawMessage, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decodeStringOrObject(data json.RawMessage, str *string, target any) error {
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, str); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return nil
	}
	return decodeObject(data, target)
}
