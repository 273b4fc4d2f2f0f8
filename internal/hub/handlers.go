package hub

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"pollroom/internal/session"
	"pollroom/pkg/types"
)

const kickReason = "removed by instructor"

func (h *Hub) identifyInstructor(connectionID string, cmd types.IdentifyInstructor) types.Reply {
	if h.roster.Contains(connectionID) {
		return h.reject(connectionID, cmd, types.ErrAlreadyIdentified)
	}
	secret := h.options.InstructorSecret
	if secret == "" || subtle.ConstantTimeCompare([]byte(cmd.Secret), []byte(secret)) != 1 {
		h.log.Warn("Instructor identification failed", "conn", connectionID)
		return types.ErrorReply(types.ErrInvalidSecret)
	}

	if h.instructorID != "" && h.instructorID != connectionID {
		h.log.Info("Instructor identity replaced", "previous", h.instructorID, "conn", connectionID)
	}
	h.instructorID = connectionID
	h.log.Info("Instructor identified", "conn", connectionID)

	state := h.snapshot(true)
	h.sendAnswerStatus()
	return types.Reply{OK: true, State: &state}
}

func (h *Hub) registerParticipant(connectionID string, cmd types.RegisterParticipant) types.Reply {
	if connectionID == h.instructorID || h.roster.Contains(connectionID) {
		return h.reject(connectionID, cmd, types.ErrAlreadyIdentified)
	}
	participant, err := h.roster.Register(connectionID, cmd.Name, h.now())
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}
	h.log.Info("Participant registered", "conn", connectionID, "name", participant.Name)

	h.broadcastRoster("")
	h.announce(fmt.Sprintf("%s joined the session", participant.Name), "")

	// Catch the newcomer up on chat and the running poll
	h.broadcaster.SendTo(connectionID, types.EventChatHistory, h.chat.History())
	if poll, active := h.polls.Active(); active {
		h.broadcaster.SendTo(connectionID, types.EventPollCreated, poll.Public())
		h.broadcaster.SendTo(connectionID, types.EventResultsUpdated, h.results(poll))
		h.broadcaster.Broadcast(types.EventParticipationUpdate, h.participation())
		h.sendAnswerStatus()
	}

	state := h.snapshot(false)
	return types.Reply{OK: true, Participant: &participant, State: &state}
}

func (h *Hub) createPoll(connectionID string, cmd types.CreatePoll) types.Reply {
	if !h.isInstructor(connectionID) {
		return h.reject(connectionID, cmd, types.ErrUnauthorized)
	}
	if h.polls.Unresolved(h.roster.Len()) {
		return h.reject(connectionID, cmd, types.ErrPollInProgress)
	}
	if err := cmd.Validate(); err != nil {
		return h.reject(connectionID, cmd, err)
	}

	poll, err := session.BuildPoll(cmd, h.now(), session.PollLimits{
		Default: h.options.DefaultPollDuration,
		Max:     h.options.MaxPollDuration,
	})
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}
	generation, err := h.polls.Install(poll, h.roster.Len())
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}
	h.scheduleDeadline(poll, generation)

	h.log.Info("Poll created",
		"poll", poll.ID, "question", poll.Question, "options", len(poll.Options), "seconds", poll.TimeLimitSeconds)

	h.broadcaster.Broadcast(types.EventPollCreated, poll.Public())
	h.announce(fmt.Sprintf("New poll: %s", poll.Question), "")
	h.broadcaster.Broadcast(types.EventParticipationUpdate, h.participation())
	h.sendAnswerStatus()

	return types.Reply{OK: true, Poll: &poll}
}

func (h *Hub) submitAnswer(connectionID string, cmd types.SubmitAnswer) types.Reply {
	participant, registered := h.roster.Get(connectionID)
	if !registered {
		return h.reject(connectionID, cmd, types.ErrUnauthorized)
	}
	if cmd.ParticipantName != "" && cmd.ParticipantName != participant.Name {
		h.log.Debug("Answer carries a different participant name",
			"conn", connectionID, "name", participant.Name, "claimed", cmd.ParticipantName)
	}

	correct, err := h.polls.Submit(connectionID, cmd.Answer, cmd.PollID)
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}
	poll, _ := h.polls.Active()
	h.log.Debug("Answer recorded", "conn", connectionID, "name", participant.Name, "poll", poll.ID)

	h.broadcaster.Broadcast(types.EventResultsUpdated, h.results(poll))
	h.broadcaster.Broadcast(types.EventParticipationUpdate, h.participation())
	h.sendAnswerStatus()
	h.checkAllAnswered(poll)

	return types.Reply{OK: true, IsCorrect: &correct}
}

func (h *Hub) endPoll(connectionID string) types.Reply {
	if !h.isInstructor(connectionID) {
		return h.reject(connectionID, types.EndPoll{}, types.ErrUnauthorized)
	}
	poll, percentages, err := h.polls.End()
	if err != nil {
		return h.reject(connectionID, types.EndPoll{}, err)
	}
	h.stopDeadline()
	h.finishPoll(poll, percentages, types.PollEndedByInstructor)
	return types.OKReply()
}

// expirePoll ends the poll identified by generation; a superseded timer is ignored
func (h *Hub) expirePoll(generation uint64) {
	poll, percentages, expired := h.polls.Expire(generation)
	if !expired {
		h.log.Debug("Ignoring stale poll deadline", "generation", generation)
		return
	}
	h.deadline = nil
	h.finishPoll(poll, percentages, types.PollEndedExpired)
}

func (h *Hub) finishPoll(poll types.Poll, percentages map[string]int, reason string) {
	h.log.Info("Poll ended", "poll", poll.ID, "reason", reason)

	h.broadcaster.Broadcast(types.EventPollEnded, types.PollEnded{
		Poll:        poll,
		Percentages: percentages,
		Reason:      reason,
	})
	if reason == types.PollEndedExpired {
		h.announce(fmt.Sprintf("Time is up for poll: %s", poll.Question), "")
		return
	}
	h.announce(fmt.Sprintf("Poll ended: %s", poll.Question), "")
}

func (h *Hub) instructorMessage(connectionID string, cmd types.InstructorMessage) types.Reply {
	if !h.isInstructor(connectionID) {
		return h.reject(connectionID, cmd, types.ErrUnauthorized)
	}
	text, err := types.NormalizeText(cmd.Text, h.options.MaxMessageLength)
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}

	msg := h.chat.Append(types.ChatMessage{
		Sender:    h.options.InstructorName,
		Text:      text,
		Timestamp: h.now(),
	})
	h.broadcaster.Broadcast(types.EventChatMessage, msg)
	return types.OKReply()
}

func (h *Hub) participantMessage(connectionID string, cmd types.ParticipantMessage) types.Reply {
	participant, registered := h.roster.Get(connectionID)
	if !registered {
		return h.reject(connectionID, cmd, types.ErrUnauthorized)
	}
	text, err := types.NormalizeText(cmd.Text, h.options.MaxMessageLength)
	if err != nil {
		return h.reject(connectionID, cmd, err)
	}

	now := h.now()
	if !h.limiter.TryConsume(connectionID, now) {
		retryAfter := h.limiter.RetryAfter(connectionID, now)
		h.broadcaster.SendTo(connectionID, types.EventChatRateLimited, types.ChatRateLimited{
			RetryAfterMs: retryAfter.Milliseconds(),
		})
		return h.reject(connectionID, cmd, types.ErrRateLimited)
	}

	if h.censor != nil {
		text = h.censor.Censor(text)
	}
	msg := h.chat.Append(types.ChatMessage{Sender: participant.Name, Text: text, Timestamp: now})
	h.broadcaster.Broadcast(types.EventChatMessage, msg)
	return types.OKReply()
}

func (h *Hub) removeParticipant(connectionID string, cmd types.RemoveParticipant) types.Reply {
	if !h.isInstructor(connectionID) {
		return h.reject(connectionID, cmd, types.ErrUnauthorized)
	}
	targetID, found := h.roster.Find(strings.TrimSpace(cmd.Name))
	if !found {
		return h.reject(connectionID, cmd, types.ErrParticipantNotFound)
	}

	h.broadcaster.SendTo(targetID, types.EventForcedDisconnect, types.ForcedDisconnect{Reason: kickReason})
	participant := h.dropParticipant(targetID)
	h.broadcaster.Disconnect(targetID)
	h.log.Info("Participant removed", "conn", targetID, "name", participant.Name)

	h.announce(fmt.Sprintf("%s was removed from the session", participant.Name), targetID)
	h.broadcastRoster(targetID)
	h.refreshPollProgress()
	return types.OKReply()
}

func (h *Hub) disconnect(connectionID string) types.Reply {
	if connectionID == h.instructorID {
		h.instructorID = ""
		h.log.Info("Instructor disconnected", "conn", connectionID)
		return types.Reply{}
	}
	if !h.roster.Contains(connectionID) {
		h.limiter.Forget(connectionID)
		return types.Reply{}
	}

	participant := h.dropParticipant(connectionID)
	h.log.Info("Participant left", "conn", connectionID, "name", participant.Name)

	h.broadcastRoster("")
	h.announce(fmt.Sprintf("%s left the session", participant.Name), "")
	h.refreshPollProgress()
	return types.Reply{}
}

// dropParticipant removes every trace of a participant except its tally contribution
func (h *Hub) dropParticipant(connectionID string) types.Participant {
	participant, _ := h.roster.Remove(connectionID)
	h.polls.Forget(connectionID)
	h.limiter.Forget(connectionID)
	return participant
}

// refreshPollProgress recomputes participation after the roster shrank
func (h *Hub) refreshPollProgress() {
	poll, active := h.polls.Active()
	if !active {
		return
	}
	h.broadcaster.Broadcast(types.EventParticipationUpdate, h.participation())
	h.sendAnswerStatus()
	h.checkAllAnswered(poll)
}

func (h *Hub) checkAllAnswered(poll types.Poll) {
	if !h.polls.AnnounceAllAnswered(h.roster.Len()) {
		return
	}
	h.log.Info("All participants answered", "poll", poll.ID, "participants", h.roster.Len())
	h.broadcaster.Broadcast(types.EventAllAnswered, types.AllAnswered{
		PollID:      poll.ID,
		Question:    poll.Question,
		Percentages: h.polls.Percentages(),
	})
	h.announce(fmt.Sprintf("All participants have answered: %s", poll.Question), "")
}

func (h *Hub) isInstructor(connectionID string) bool {
	return h.instructorID != "" && connectionID == h.instructorID
}

// announce appends a system chat message and sends it to everyone but except
func (h *Hub) announce(text, except string) {
	msg := h.chat.System(text)
	if except == "" {
		h.broadcaster.Broadcast(types.EventChatMessage, msg)
		return
	}
	h.broadcaster.BroadcastExcept(except, types.EventChatMessage, msg)
}

func (h *Hub) broadcastRoster(except string) {
	names := h.roster.ListNames()
	roster := types.Roster{Names: names, Count: len(names)}
	if except == "" {
		h.broadcaster.Broadcast(types.EventRosterUpdated, roster)
		return
	}
	h.broadcaster.BroadcastExcept(except, types.EventRosterUpdated, roster)
}

// sendAnswerStatus refreshes the instructor's per-participant view of the active poll
func (h *Hub) sendAnswerStatus() {
	poll, active := h.polls.Active()
	if !active || h.instructorID == "" {
		return
	}
	participants := h.roster.List()
	statuses := make([]types.ParticipantStatus, 0, len(participants))
	for _, p := range participants {
		answer, answered := h.polls.Answer(p.ConnectionID)
		statuses = append(statuses, types.ParticipantStatus{Name: p.Name, Answered: answered, Answer: answer})
	}
	h.broadcaster.SendTo(h.instructorID, types.EventAnswerStatus, types.AnswerStatus{
		PollID:        poll.ID,
		Participants:  statuses,
		Participation: h.participation(),
	})
}

func (h *Hub) participation() types.Participation {
	return types.Participation{Answered: h.polls.AnsweredCount(), Total: h.roster.Len()}
}

func (h *Hub) results(poll types.Poll) types.Results {
	return types.Results{
		PollID:         poll.ID,
		Percentages:    h.polls.Percentages(),
		TotalResponses: h.polls.TotalResponses(),
	}
}

// snapshot builds the session view; correct answers are included only when full
func (h *Hub) snapshot(full bool) types.Snapshot {
	state := types.Snapshot{
		Percentages:       h.polls.Percentages(),
		Participation:     h.participation(),
		ChatHistory:       h.chat.History(),
		Roster:            h.roster.ListNames(),
		InstructorPresent: h.instructorID != "",
	}
	if poll, active := h.polls.Active(); active {
		if !full {
			poll = poll.Public()
		}
		state.Poll = &poll
	}
	return state
}
