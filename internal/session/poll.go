package session

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"pollroom/pkg/types"
)

const (
	// DefaultPollDuration applies when a poll request carries no time limit
	DefaultPollDuration = 60 * time.Second
	// MaxPollDuration caps every poll deadline
	MaxPollDuration = 300 * time.Second

	minPollDuration = time.Millisecond
)

// PollLimits bounds the deadline of newly built polls
type PollLimits struct {
	Default time.Duration
	Max     time.Duration
}

// BuildPoll cleans a poll request into an installable Poll.
// Options and correct answers are trimmed, empties dropped and duplicates removed
// keeping first occurrence order. The deadline is min(requested, limits.Max);
// TimeLimitSeconds rounds a fractional deadline up to whole seconds.
func BuildPoll(req types.CreatePoll, now time.Time, limits PollLimits) (types.Poll, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return types.Poll{}, fmt.Errorf("%w: question is empty", types.ErrInvalidPollSpec)
	}

	options := cleanList(req.Options)
	if len(options) < 2 {
		return types.Poll{}, fmt.Errorf("%w: at least two distinct options are required", types.ErrInvalidPollSpec)
	}

	correct := cleanList(req.CorrectAnswers)
	if !lo.Every(options, correct) {
		return types.Poll{}, fmt.Errorf("%w: correct answers must be poll options", types.ErrInvalidPollSpec)
	}

	duration := pollDuration(req.TimeLimitSeconds, limits)
	return types.Poll{
		ID:               uuid.New().String(),
		Question:         question,
		Options:          options,
		CorrectAnswers:   correct,
		TimeLimitSeconds: int(math.Ceil(duration.Seconds())),
		CreatedAt:        now,
		EndsAt:           now.Add(duration),
	}, nil
}

func cleanList(values []string) []string {
	trimmed := lo.Map(values, func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Uniq(lo.Filter(trimmed, func(v string, _ int) bool { return v != "" }))
}

// pollDuration clamps the requested seconds into (0, limits.Max].
// The comparison happens in seconds so huge requests cannot overflow a Duration.
func pollDuration(requestedSeconds float64, limits PollLimits) time.Duration {
	if limits.Default <= 0 {
		limits.Default = DefaultPollDuration
	}
	if limits.Max <= 0 {
		limits.Max = MaxPollDuration
	}
	duration := limits.Default
	switch {
	case requestedSeconds >= limits.Max.Seconds():
		duration = limits.Max
	case requestedSeconds > 0:
		duration = max(time.Duration(requestedSeconds*float64(time.Second)), minPollDuration)
	}
	return min(duration, limits.Max)
}

// PollState holds the single active poll, its tally and the set of connections
// that answered it. It is not safe for concurrent use; the hub owns it.
//
// The tally counts every accepted submission while the answered set counts
// connections, so a participant who changes their answer adds to the tally
// again without changing the answered count.
type PollState struct {
	active     *types.Poll
	tally      map[string]int
	answered   map[string]string // connection id -> latest answer
	generation uint64
	announced  bool
}

// NewPollState creates an idle poll state
func NewPollState() *PollState {
	return &PollState{
		tally:    make(map[string]int),
		answered: make(map[string]string),
	}
}

// Active returns the active poll, if any
func (p *PollState) Active() (types.Poll, bool) {
	if p.active == nil {
		return types.Poll{}, false
	}
	return *p.active, true
}

// Generation identifies the current poll instance for deadline timers
func (p *PollState) Generation() uint64 {
	return p.generation
}

// Unresolved reports whether an active poll still waits for answers.
// A poll with no participants is resolved.
func (p *PollState) Unresolved(participantCount int) bool {
	return p.active != nil && len(p.answered) < participantCount
}

// Install replaces the current poll with poll and resets tally and answered set.
// It returns the generation a deadline timer must present to Expire.
func (p *PollState) Install(poll types.Poll, participantCount int) (uint64, error) {
	if p.Unresolved(participantCount) {
		return 0, types.ErrPollInProgress
	}
	p.active = &poll
	p.reset()
	for _, option := range poll.Options {
		p.tally[option] = 0
	}
	p.generation++
	return p.generation, nil
}

// Submit records answer for connectionID and reports whether it is correct.
// pollID must equal the active poll's question.
func (p *PollState) Submit(connectionID, answer, pollID string) (bool, error) {
	if p.active == nil {
		return false, types.ErrNoActivePoll
	}
	if pollID != p.active.Question {
		return false, types.ErrPollMismatch
	}
	if !lo.Contains(p.active.Options, answer) {
		return false, fmt.Errorf("%w: %q", types.ErrInvalidOption, answer)
	}

	p.tally[answer]++
	p.answered[connectionID] = answer
	return p.active.IsCorrect(answer), nil
}

// End clears the active poll and returns it with its final percentages
func (p *PollState) End() (types.Poll, map[string]int, error) {
	if p.active == nil {
		return types.Poll{}, nil, types.ErrNoActivePoll
	}
	poll, percentages := *p.active, p.Percentages()
	p.active = nil
	p.reset()
	return poll, percentages, nil
}

// Expire ends the active poll only if generation still identifies it.
// A stale generation is a no-op.
func (p *PollState) Expire(generation uint64) (types.Poll, map[string]int, bool) {
	if p.active == nil || generation != p.generation {
		return types.Poll{}, nil, false
	}
	poll, percentages, _ := p.End()
	return poll, percentages, true
}

// Forget removes connectionID from the answered set, used when a participant
// leaves mid-poll. Its contribution to the tally is kept.
func (p *PollState) Forget(connectionID string) {
	delete(p.answered, connectionID)
}

// Percentages returns round(100 * count / max(1, total)) for each option,
// or an empty map when no poll is active
func (p *PollState) Percentages() map[string]int {
	percentages := make(map[string]int)
	if p.active == nil {
		return percentages
	}
	total := max(1, p.TotalResponses())
	for _, option := range p.active.Options {
		percentages[option] = int(math.Round(100 * float64(p.tally[option]) / float64(total)))
	}
	return percentages
}

// Tally returns a copy of the per-option counts
func (p *PollState) Tally() map[string]int {
	return lo.Assign(p.tally)
}

// TotalResponses is the sum of all tally counts
func (p *PollState) TotalResponses() int {
	return lo.Sum(lo.Values(p.tally))
}

// AnsweredCount is the number of connections that answered the active poll
func (p *PollState) AnsweredCount() int {
	return len(p.answered)
}

// Answer returns the latest answer of connectionID to the active poll
func (p *PollState) Answer(connectionID string) (string, bool) {
	answer, exists := p.answered[connectionID]
	return answer, exists
}

// AllAnswered reports whether every current participant answered
func (p *PollState) AllAnswered(participantCount int) bool {
	return participantCount > 0 && len(p.answered) == participantCount
}

// AnnounceAllAnswered returns true the first time AllAnswered holds for the
// active poll, and false on every later call for the same poll
func (p *PollState) AnnounceAllAnswered(participantCount int) bool {
	if p.active == nil || p.announced || !p.AllAnswered(participantCount) {
		return false
	}
	p.announced = true
	return true
}

func (p *PollState) reset() {
	p.tally = make(map[string]int)
	p.answered = make(map[string]string)
	p.announced = false
}
