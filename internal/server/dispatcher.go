package server

import (
	"context"
	"errors"
	"strings"

	"classpoll/internal/domain/session"
	"classpoll/internal/events"
	"classpoll/internal/services"
	classpoll_errors "classpoll/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const removedFromSessionMessage = "You have been removed from the session by the teacher"

// Dispatcher routes client commands received over the push channel to the
// poll, vote and presence services.
type Dispatcher struct {
	hub      *Hub
	polls    *services.PollService
	votes    *services.VoteService
	presence *services.PresenceService
	logger   *WebSocketLogger
}

func NewDispatcher(hub *Hub, polls *services.PollService, votes *services.VoteService) *Dispatcher {
	return &Dispatcher{
		hub:      hub,
		polls:    polls,
		votes:    votes,
		presence: hub.presence,
		logger:   hub.logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, env events.Envelope) {
	switch env.Event {
	case events.CommandStudentJoin:
		d.studentJoin(ctx, c, env)
	case events.CommandTeacherJoin:
		d.teacherJoin(ctx, c)
	case events.CommandGetActivePoll:
		d.getActivePoll(ctx, c)
	case events.CommandGetPollResults:
		d.getPollResults(ctx, c, env)
	case events.CommandSendChatMessage:
		d.sendChatMessage(ctx, c, env)
	case events.CommandGetParticipants:
		c.SendEvent(events.ParticipantsChanged(d.presence.Roster()))
	case events.CommandRemoveStudent:
		d.removeStudent(ctx, c, env)
	case events.CommandCreatePoll:
		d.createPoll(ctx, c, env)
	case events.CommandSubmitVote:
		d.submitVote(ctx, c, env)
	case events.CommandEndPoll:
		d.endPoll(ctx, c, env)
	case events.CommandPing:
		c.SendEvent(events.New(events.EventPong, nil))
	default:
		d.logger.Warn("unknown message type", c.clientID, c.name(), zap.String("msg_type", env.Event))
	}
}

func (d *Dispatcher) studentJoin(ctx context.Context, c *Client, env events.Envelope) {
	var req events.StudentJoinRequest
	if !d.decode(c, env, &req, events.EventPollError) {
		return
	}
	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		c.SendEvent(events.Error(events.EventPollError, "Student name is required"))
		return
	}

	roster := d.presence.Join(c.clientID, name, session.RoleStudent)
	c.SendEvent(events.New(events.EventJoinConfirmed, events.JoinConfirmedPayload{StudentName: name}))
	d.logger.Info("student joined", c.clientID, name)
	d.broadcast(ctx, c, events.ParticipantsChanged(roster))
}

func (d *Dispatcher) teacherJoin(ctx context.Context, c *Client) {
	roster := d.presence.Join(c.clientID, session.TeacherDisplayName, session.RoleTeacher)
	d.logger.Info("teacher joined", c.clientID, session.TeacherDisplayName)
	d.broadcast(ctx, c, events.ParticipantsChanged(roster))
}

func (d *Dispatcher) getActivePoll(ctx context.Context, c *Client) {
	view, found, err := d.polls.GetActivePoll(ctx)
	if err != nil {
		d.fail(c, events.EventPollError, err)
		return
	}
	if !found {
		c.SendEvent(events.New(events.EventNoActivePoll, nil))
		return
	}
	c.SendEvent(events.ActivePoll(view))
}

func (d *Dispatcher) getPollResults(ctx context.Context, c *Client, env events.Envelope) {
	var req events.PollRefRequest
	if !d.decode(c, env, &req, events.EventPollError) {
		return
	}
	id, err := uuid.Parse(req.PollID)
	if err != nil {
		d.fail(c, events.EventPollError, classpoll_errors.ErrNotFound)
		return
	}

	view, err := d.polls.GetPoll(ctx, id)
	if err != nil {
		d.fail(c, events.EventPollError, err)
		return
	}
	c.SendEvent(events.PollResults(view))
}

// sendChatMessage relays the message to everyone, sender included. Sender
// and role are whatever the client claims.
func (d *Dispatcher) sendChatMessage(ctx context.Context, c *Client, env events.Envelope) {
	var msg events.ChatMessagePayload
	if !d.decode(c, env, &msg, events.EventPollError) {
		return
	}
	if strings.TrimSpace(msg.Message) == "" {
		return
	}
	d.broadcast(ctx, c, events.New(events.EventChatMessage, msg))
}

func (d *Dispatcher) removeStudent(ctx context.Context, c *Client, env events.Envelope) {
	var req events.RemoveStudentRequest
	if !d.decode(c, env, &req, events.EventPollError) {
		return
	}

	removed, roster := d.presence.RemoveStudent(req.StudentName)
	if len(removed) == 0 {
		return
	}
	for _, p := range removed {
		d.hub.Kick(p.SocketID, events.Error(events.EventRemovedFromSession, removedFromSessionMessage))
		d.logger.Info("student removed", p.SocketID, p.Name, zap.String("removed_by", c.clientID))
	}
	d.broadcast(ctx, c, events.ParticipantsChanged(roster))
}

func (d *Dispatcher) createPoll(ctx context.Context, c *Client, env events.Envelope) {
	var req events.CreatePollRequest
	if !d.decode(c, env, &req, events.EventPollError) {
		return
	}

	_, err := d.polls.CreatePoll(ctx, services.CreatePollInput{
		Question: req.Question,
		Options:  req.Options,
		Duration: req.Duration,
	})
	if err != nil {
		d.fail(c, events.EventPollError, err)
	}
}

func (d *Dispatcher) submitVote(ctx context.Context, c *Client, env events.Envelope) {
	var req events.SubmitVoteRequest
	if !d.decode(c, env, &req, events.EventVoteError) {
		return
	}
	id, err := uuid.Parse(req.PollID)
	if err != nil {
		d.fail(c, events.EventVoteError, classpoll_errors.ErrNotFound)
		return
	}

	_, err = d.votes.SubmitVote(ctx, services.VoteInput{
		PollID:      id,
		OptionIndex: req.OptionIndex,
		StudentName: req.StudentName,
	})
	if err != nil {
		d.fail(c, events.EventVoteError, err)
	}
}

func (d *Dispatcher) endPoll(ctx context.Context, c *Client, env events.Envelope) {
	var req events.PollRefRequest
	if !d.decode(c, env, &req, events.EventPollError) {
		return
	}
	id, err := uuid.Parse(req.PollID)
	if err != nil {
		d.fail(c, events.EventPollError, classpoll_errors.ErrNotFound)
		return
	}

	if _, err := d.polls.EndPoll(ctx, id); err != nil {
		d.fail(c, events.EventPollError, err)
	}
}

func (d *Dispatcher) decode(c *Client, env events.Envelope, v interface{}, errorEvent string) bool {
	if err := env.Decode(v); err != nil {
		d.logger.Warn("malformed payload", c.clientID, c.name(), zap.String("msg_type", env.Event), zap.Error(err))
		c.SendEvent(events.Error(errorEvent, "Invalid request"))
		return false
	}
	return true
}

// fail replies to the caller only. Storage failures are logged and reported
// generically.
func (d *Dispatcher) fail(c *Client, errorEvent string, err error) {
	if errors.Is(err, classpoll_errors.ErrStorage) {
		d.logger.Error("command failed", c.clientID, c.name(), err, zap.String("msg_type", errorEvent))
	}
	c.SendEvent(events.Error(errorEvent, classpoll_errors.PublicMessage(err)))
}

func (d *Dispatcher) broadcast(ctx context.Context, c *Client, event events.Event) {
	if err := d.hub.Publish(ctx, event); err != nil {
		d.logger.Error("broadcast failed", c.clientID, c.name(), err, zap.String("msg_type", event.Name))
	}
}
