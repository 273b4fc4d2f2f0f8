package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pollroom/internal/ratelimit"
	"pollroom/internal/session"
	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

// Options tunes the session rules
type Options struct {
	InstructorSecret    string
	InstructorName      string
	DefaultPollDuration time.Duration
	MaxPollDuration     time.Duration
	MaxChatHistory      int
	MaxMessageLength    int
	ChatRateWindow      time.Duration
}

// DefaultOptions returns the stock session rules with an empty secret
func DefaultOptions() Options {
	return Options{
		InstructorName:      "Instructor",
		DefaultPollDuration: session.DefaultPollDuration,
		MaxPollDuration:     session.MaxPollDuration,
		MaxChatHistory:      session.DefaultMaxHistory,
		MaxMessageLength:    session.DefaultMaxTextLength,
		ChatRateWindow:      ratelimit.DefaultWindow,
	}
}

// Censor masks unwanted words in participant chat
type Censor interface {
	Censor(text string) string
}

// Timer is the part of *time.Timer the hub uses for poll deadlines
type Timer interface {
	Stop() bool
}

// Option customizes a Hub at construction
type Option func(*Hub)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithAfterFunc replaces time.AfterFunc for poll deadlines
func WithAfterFunc(afterFunc func(time.Duration, func()) Timer) Option {
	return func(h *Hub) { h.afterFunc = afterFunc }
}

// WithCensor filters participant chat text before it is stored
func WithCensor(censor Censor) Option {
	return func(h *Hub) { h.censor = censor }
}

// Hub coordinates one classroom session
// ARCHITECTURAL DISCOVERY: A single goroutine owns poll, roster, chat and rate
// limit state; every command, timer expiry included, runs to completion inside
// the loop so no two handlers interleave a read-modify-write
type Hub struct {
	options     Options
	broadcaster interfaces.Broadcaster
	censor      Censor
	log         *slog.Logger
	now         func() time.Time
	afterFunc   func(time.Duration, func()) Timer

	// FUNCTIONAL DISCOVERY: Buffered channel absorbs bursts while connection
	// goroutines wait on their own completion signal
	commandChannel  chan *envelope
	shutdownChannel chan struct{}
	done            chan struct{}
	running         bool
	stopped         bool
	mu              sync.RWMutex

	// Session state, touched only by the run goroutine
	instructorID string
	roster       *session.Roster
	polls        *session.PollState
	chat         *session.ChatLog
	limiter      *ratelimit.RateLimiter
	deadline     Timer
}

// envelope carries one command through the loop
type envelope struct {
	connectionID string
	cmd          types.Command
	reply        types.Reply
	done         chan struct{} // nil for internal commands
}

// pollExpired is injected by the deadline timer of the poll with this generation
type pollExpired struct {
	generation uint64
}

func (pollExpired) EventName() string { return "poll-expired" }

// snapshotQuery reads the session state through the loop
type snapshotQuery struct {
	full bool
}

func (snapshotQuery) EventName() string { return "snapshot" }

// NewHub creates a hub delivering events through broadcaster
func NewHub(options Options, broadcaster interfaces.Broadcaster, log *slog.Logger, opts ...Option) *Hub {
	defaults := DefaultOptions()
	if options.InstructorName == "" {
		options.InstructorName = defaults.InstructorName
	}
	if options.DefaultPollDuration <= 0 {
		options.DefaultPollDuration = defaults.DefaultPollDuration
	}
	if options.MaxPollDuration <= 0 {
		options.MaxPollDuration = defaults.MaxPollDuration
	}

	h := &Hub{
		options:         options,
		broadcaster:     broadcaster,
		log:             log,
		now:             time.Now,
		afterFunc:       func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		commandChannel:  make(chan *envelope, 1000),
		shutdownChannel: make(chan struct{}),
		done:            make(chan struct{}),
		roster:          session.NewRoster(),
		polls:           session.NewPollState(),
		chat:            session.NewChatLog(options.MaxChatHistory, options.MaxMessageLength),
		limiter:         ratelimit.NewRateLimiter(options.ChatRateWindow),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins processing commands until Stop is called or ctx is cancelled
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	if h.stopped {
		// A stopped hub cannot be restarted
		return ErrHubNotRunning
	}
	h.running = true

	h.log.Info("Starting session hub")
	go h.run(ctx)
	return nil
}

// Stop shuts the loop down; pending Dispatch calls return ErrHubNotRunning
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false
	h.stopped = true

	h.log.Info("Stopping session hub")
	close(h.shutdownChannel)
	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dispatch applies cmd on behalf of connectionID and waits for its reply
func (h *Hub) Dispatch(ctx context.Context, connectionID string, cmd types.Command) (types.Reply, error) {
	if !h.isRunning() {
		return types.Reply{}, ErrHubNotRunning
	}
	env := &envelope{connectionID: connectionID, cmd: cmd, done: make(chan struct{})}

	select {
	case h.commandChannel <- env:
	case <-h.done:
		return types.Reply{}, ErrHubNotRunning
	case <-ctx.Done():
		return types.Reply{}, ctx.Err()
	}

	select {
	case <-env.done:
		return env.reply, nil
	case <-h.done:
		return types.Reply{}, ErrHubNotRunning
	case <-ctx.Done():
		return types.Reply{}, ctx.Err()
	}
}

// Snapshot returns the participant-safe view of the session
func (h *Hub) Snapshot(ctx context.Context) (types.Snapshot, error) {
	reply, err := h.Dispatch(ctx, "", snapshotQuery{})
	if err != nil {
		return types.Snapshot{}, err
	}
	if reply.State == nil {
		return types.Snapshot{}, types.ErrInternal
	}
	return *reply.State, nil
}

// enqueue hands an internal command to the loop, dropping it after shutdown
func (h *Hub) enqueue(env *envelope) {
	select {
	case h.commandChannel <- env:
	case <-h.done:
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context) {
	defer func() {
		h.stopDeadline()
		close(h.done)
		h.log.Info("Session hub stopped")
	}()

	for {
		select {
		case env := <-h.commandChannel:
			h.apply(env)
		case <-h.shutdownChannel:
			return
		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			h.stopped = true
			h.mu.Unlock()
			return
		}
	}
}

// apply runs one command and recovers from handler faults
// FUNCTIONAL DISCOVERY: A panicking handler fails only its own caller;
// the loop keeps serving subsequent commands
func (h *Hub) apply(env *envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Command handler panicked",
				"event", env.cmd.EventName(), "conn", env.connectionID, "panic", r)
			env.reply = types.ErrorReply(types.ErrInternal)
		}
		if env.done != nil {
			close(env.done)
		}
	}()
	env.reply = h.handle(env.connectionID, env.cmd)
}

func (h *Hub) handle(connectionID string, cmd types.Command) types.Reply {
	switch c := cmd.(type) {
	case types.IdentifyInstructor:
		return h.identifyInstructor(connectionID, c)
	case types.RegisterParticipant:
		return h.registerParticipant(connectionID, c)
	case types.CreatePoll:
		return h.createPoll(connectionID, c)
	case types.SubmitAnswer:
		return h.submitAnswer(connectionID, c)
	case types.EndPoll:
		return h.endPoll(connectionID)
	case types.InstructorMessage:
		return h.instructorMessage(connectionID, c)
	case types.ParticipantMessage:
		return h.participantMessage(connectionID, c)
	case types.RemoveParticipant:
		return h.removeParticipant(connectionID, c)
	case types.Disconnect:
		return h.disconnect(connectionID)
	case pollExpired:
		h.expirePoll(c.generation)
		return types.Reply{}
	case snapshotQuery:
		state := h.snapshot(c.full)
		return types.Reply{OK: true, State: &state}
	default:
		return h.reject(connectionID, cmd, types.ErrUnknownEvent)
	}
}

// reject logs a refused command and turns err into its reply
func (h *Hub) reject(connectionID string, cmd types.Command, err error) types.Reply {
	h.log.Debug("Command rejected",
		"event", cmd.EventName(), "conn", connectionID, "kind", types.KindOf(err), "err", err)
	return types.ErrorReply(err)
}

func (h *Hub) scheduleDeadline(poll types.Poll, generation uint64) {
	h.stopDeadline()
	duration := poll.EndsAt.Sub(poll.CreatedAt)
	h.deadline = h.afterFunc(duration, func() {
		h.enqueue(&envelope{cmd: pollExpired{generation: generation}})
	})
}

func (h *Hub) stopDeadline() {
	if h.deadline != nil {
		h.deadline.Stop()
		h.deadline = nil
	}
}
