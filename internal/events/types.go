package events

import (
	"encoding/json"
	"time"

	"classpoll/internal/domain/poll"
	"classpoll/internal/domain/session"

	"github.com/google/uuid"
)

// Server -> client events
const (
	EventPollCreated         = "pollCreated"
	EventTimerTick           = "timerUpdate"
	EventVoteRecorded        = "voteSubmitted"
	EventPollEnded           = "pollEnded"
	EventParticipantsChanged = "participantsUpdate"
	EventChatMessage         = "chatMessage"
	EventRemovedFromSession  = "removedFromSession"
	EventJoinConfirmed       = "joinConfirmed"
	EventActivePoll          = "activePoll"
	EventNoActivePoll        = "noActivePoll"
	EventPollResults         = "pollResults"
	EventPollError           = "pollError"
	EventVoteError           = "voteError"
	EventPong                = "pong"
)

// Client -> server events
const (
	CommandStudentJoin     = "studentJoin"
	CommandTeacherJoin     = "teacherJoin"
	CommandGetActivePoll   = "getActivePoll"
	CommandGetPollResults  = "getPollResults"
	CommandSendChatMessage = "sendChatMessage"
	CommandGetParticipants = "getParticipants"
	CommandRemoveStudent   = "removeStudent"
	CommandCreatePoll      = "createPoll"
	CommandSubmitVote      = "submitVote"
	CommandEndPoll         = "endPoll"
	CommandPing            = "ping"
)

type PollCreatedPayload struct {
	PollID    uuid.UUID `json:"pollId"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Duration  int       `json:"duration"`
	StartTime time.Time `json:"startTime"`
}

type TimerTickPayload struct {
	PollID        uuid.UUID `json:"pollId"`
	TimeRemaining int       `json:"timeRemaining"`
}

type PollEndedPayload struct {
	PollID         uuid.UUID           `json:"pollId"`
	Results        []poll.OptionResult `json:"results"`
	TotalResponses int64               `json:"totalResponses"`
}

type ActivePollPayload struct {
	PollID         uuid.UUID           `json:"pollId"`
	Question       string              `json:"question"`
	Options        []string            `json:"options"`
	Duration       int                 `json:"duration"`
	TimeRemaining  int                 `json:"timeRemaining"`
	Results        []poll.OptionResult `json:"results"`
	TotalResponses int64               `json:"totalResponses"`
}

type PollResultsPayload struct {
	PollID         uuid.UUID           `json:"pollId"`
	Question       string              `json:"question"`
	Results        []poll.OptionResult `json:"results"`
	TotalResponses int64               `json:"totalResponses"`
	Status         poll.Status         `json:"status"`
}

type ParticipantsPayload struct {
	Participants []session.Participant `json:"participants"`
}

type ChatMessagePayload struct {
	Sender    string          `json:"sender"`
	Message   string          `json:"message"`
	Role      session.Role    `json:"role"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type JoinConfirmedPayload struct {
	StudentName string `json:"studentName"`
}

// Client -> server payloads

type StudentJoinRequest struct {
	StudentName string `json:"studentName"`
}

type PollRefRequest struct {
	PollID string `json:"pollId"`
}

type RemoveStudentRequest struct {
	StudentName string `json:"studentName"`
}

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

type SubmitVoteRequest struct {
	PollID      string `json:"pollId"`
	OptionIndex int    `json:"optionIndex"`
	StudentName string `json:"studentName"`
}

func PollCreated(p poll.Poll) Event {
	return New(EventPollCreated, PollCreatedPayload{
		PollID:    p.ID,
		Question:  p.Question,
		Options:   p.OptionTexts(),
		Duration:  p.Duration,
		StartTime: p.CreatedAt,
	})
}

func TimerTick(pollID uuid.UUID, remaining int) Event {
	return New(EventTimerTick, TimerTickPayload{PollID: pollID, TimeRemaining: remaining})
}

func VoteRecorded(r poll.VoteResult) Event {
	return New(EventVoteRecorded, r)
}

func PollEnded(p poll.Poll, totalResponses int64) Event {
	return New(EventPollEnded, PollEndedPayload{
		PollID:         p.ID,
		Results:        p.Results(),
		TotalResponses: totalResponses,
	})
}

func ParticipantsChanged(roster []session.Participant) Event {
	if roster == nil {
		roster = []session.Participant{}
	}
	return New(EventParticipantsChanged, ParticipantsPayload{Participants: roster})
}

func ActivePoll(v poll.View) Event {
	return New(EventActivePoll, ActivePollPayload{
		PollID:         v.ID,
		Question:       v.Question,
		Options:        v.OptionTexts(),
		Duration:       v.Duration,
		TimeRemaining:  v.TimeRemaining,
		Results:        v.Results(),
		TotalResponses: v.TotalResponses,
	})
}

func PollResults(v poll.View) Event {
	return New(EventPollResults, PollResultsPayload{
		PollID:         v.ID,
		Question:       v.Question,
		Results:        v.Results(),
		TotalResponses: v.TotalResponses,
		Status:         v.Status,
	})
}

func Error(name, message string) Event {
	return New(name, MessagePayload{Message: message})
}
