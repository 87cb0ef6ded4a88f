package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxHistoryLimit = 50

type PollConfig struct {
	DefaultDuration int
	MaxDuration     int
	HistoryLimit    int
	TickInterval    time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		DefaultDuration: poll.DefaultDurationSeconds,
		MaxDuration:     3600,
		HistoryLimit:    MaxHistoryLimit,
		TickInterval:    time.Second,
	}
}

type CreatePollInput struct {
	Question string
	Options  []string
	Duration int
}

// PollService owns the poll state machine (active -> ended), the single
// active poll rule and the expiry timers.
type PollService struct {
	polls     repository.PollRepository
	responses repository.ResponseRepository
	publisher events.Publisher
	timers    *PollTimers
	config    PollConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewPollService(polls repository.PollRepository, responses repository.ResponseRepository, publisher events.Publisher, cfg PollConfig, l *logger.Logger) *PollService {
	if publisher == nil {
		publisher = events.Discard
	}
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = poll.DefaultDurationSeconds
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > MaxHistoryLimit {
		cfg.HistoryLimit = MaxHistoryLimit
	}
	return &PollService{
		polls:     polls,
		responses: responses,
		publisher: publisher,
		timers:    NewPollTimers(cfg.TickInterval),
		config:    cfg,
		logger:    l.Logger.With(zap.String("component", "poll_service")),
		now:       time.Now,
	}
}

func (s *PollService) Timers() *PollTimers {
	return s.timers
}

func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (poll.View, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" || len(in.Options) < 2 {
		return poll.View{}, classpoll_errors.Invalid("Please provide a question and at least 2 options")
	}

	options := make([]poll.PollOption, 0, len(in.Options))
	for i, text := range in.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			return poll.View{}, classpoll_errors.Invalid("Poll options cannot be empty")
		}
		options = append(options, poll.PollOption{Position: i, Text: text})
	}

	duration := in.Duration
	if duration == 0 {
		duration = s.config.DefaultDuration
	}
	if duration < 0 || (s.config.MaxDuration > 0 && duration > s.config.MaxDuration) {
		return poll.View{}, classpoll_errors.Invalid("Poll duration is out of range")
	}

	// fast path; the single-active index decides races
	if _, err := s.polls.GetActive(ctx); err == nil {
		return poll.View{}, classpoll_errors.ErrConflict
	} else if !errors.Is(err, classpoll_errors.ErrNotFound) {
		return poll.View{}, err
	}

	p := poll.Poll{
		ID:        uuid.New(),
		Question:  question,
		Options:   options,
		Duration:  duration,
		Status:    poll.StatusActive,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	for i := range p.Options {
		p.Options[i].PollID = p.ID
	}

	if err := s.polls.Create(ctx, &p); err != nil {
		return poll.View{}, err
	}

	s.arm(p)
	s.publish(ctx, events.PollCreated(p))
	s.logger.Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.Int("duration", p.Duration),
		zap.Int("options", len(p.Options)),
	)

	return poll.NewView(p, 0, s.now()), nil
}

// GetActivePoll reports found=false when no poll is active.
func (s *PollService) GetActivePoll(ctx context.Context) (poll.View, bool, error) {
	p, err := s.polls.GetActive(ctx)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			return poll.View{}, false, nil
		}
		return poll.View{}, false, err
	}
	view, err := s.view(ctx, p)
	if err != nil {
		return poll.View{}, false, err
	}
	return view, true, nil
}

func (s *PollService) GetPoll(ctx context.Context, id uuid.UUID) (poll.View, error) {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		return poll.View{}, err
	}
	return s.view(ctx, p)
}

// EndPoll ends a poll on behalf of the teacher. Ending an already ended poll
// returns its current state and publishes nothing.
func (s *PollService) EndPoll(ctx context.Context, id uuid.UUID) (poll.View, error) {
	return s.end(ctx, id, "manual")
}

// ExpireIfDue is the expiry timer's entry point. It tolerates the poll having
// been ended already and re-arms when woken before the deadline.
func (s *PollService) ExpireIfDue(ctx context.Context, id uuid.UUID) error {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			s.timers.Cancel(id)
			return nil
		}
		return err
	}
	if !p.IsActive() {
		s.timers.Cancel(id)
		return nil
	}
	if remaining := p.Deadline().Sub(s.now()); remaining > 0 {
		s.arm(p)
		return nil
	}
	_, err = s.end(ctx, id, "expired")
	return err
}

func (s *PollService) end(ctx context.Context, id uuid.UUID, reason string) (poll.View, error) {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		return poll.View{}, err
	}
	if !p.IsActive() {
		s.timers.Cancel(id)
		return s.view(ctx, p)
	}

	transitioned, err := s.polls.MarkEnded(ctx, id, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return poll.View{}, err
	}
	s.timers.Cancel(id)

	// reload so the returned tallies include votes committed before the transition
	p, err = s.polls.GetByID(ctx, id)
	if err != nil {
		return poll.View{}, err
	}
	view, err := s.view(ctx, p)
	if err != nil {
		return poll.View{}, err
	}

	if transitioned {
		s.publish(ctx, events.PollEnded(p, view.TotalResponses))
		s.logger.Info("poll ended",
			zap.String("poll_id", id.String()),
			zap.String("reason", reason),
			zap.Int64("total_responses", view.TotalResponses),
		)
	}
	return view, nil
}

// ListEndedPolls returns ended polls newest first. limit is clamped to the history cap.
func (s *PollService) ListEndedPolls(ctx context.Context, limit int) ([]poll.View, error) {
	if limit <= 0 || limit > s.config.HistoryLimit {
		limit = s.config.HistoryLimit
	}

	polls, err := s.polls.ListByStatus(ctx, poll.StatusEnded, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
	}
	counts, err := s.responses.CountByPolls(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]poll.View, len(polls))
	for i, p := range polls {
		views[i] = poll.NewView(p, counts[p.ID], now)
	}
	return views, nil
}

// Recover re-arms the timers of a poll left active by a previous process, or
// ends it when its deadline already passed.
func (s *PollService) Recover(ctx context.Context) error {
	p, err := s.polls.GetActive(ctx)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			return nil
		}
		return err
	}
	if p.Remaining(s.now()) == 0 {
		_, err := s.end(ctx, p.ID, "expired while offline")
		return err
	}
	s.arm(p)
	s.logger.Info("poll timers recovered", zap.String("poll_id", p.ID.String()))
	return nil
}

// Shutdown cancels every outstanding timer.
func (s *PollService) Shutdown() {
	s.timers.StopAll()
}

func (s *PollService) arm(p poll.Poll) {
	s.timers.Arm(p.ID, p.Deadline().Sub(s.now()), TimerCallbacks{
		OnExpire: func(id uuid.UUID) {
			if err := s.ExpireIfDue(context.Background(), id); err != nil {
				s.logger.Error("poll expiry failed", zap.String("poll_id", id.String()), zap.Error(err))
			}
		},
		OnTick: func(id uuid.UUID) {
			s.publish(context.Background(), events.TimerTick(id, p.Remaining(s.now())))
		},
	})
}

func (s *PollService) view(ctx context.Context, p poll.Poll) (poll.View, error) {
	count, err := s.responses.CountByPoll(ctx, p.ID)
	if err != nil {
		return poll.View{}, err
	}
	return poll.NewView(p, count, s.now()), nil
}

func (s *PollService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish failed", zap.String("event", event.Name), zap.Error(err))
	}
}
