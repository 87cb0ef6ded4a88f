package services

import (
	"context"
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

type VoteInput struct {
	PollID      uuid.UUID
	OptionIndex int
	StudentName string
}

// VoteService records one vote per (poll, student name) and keeps tallies.
type VoteService struct {
	polls     repository.PollRepository
	responses repository.ResponseRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewVoteService(polls repository.PollRepository, responses repository.ResponseRepository, publisher events.Publisher, l *logger.Logger) *VoteService {
	if publisher == nil {
		publisher = events.Discard
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &VoteService{
		polls:     polls,
		responses: responses,
		publisher: publisher,
		logger:    l.Logger.With(zap.String("component", "vote_service")),
		now:       time.Now,
	}
}

func (s *VoteService) SubmitVote(ctx context.Context, in VoteInput) (poll.VoteResult, error) {
	p, err := s.polls.GetByID(ctx, in.PollID)
	if err != nil {
		return poll.VoteResult{}, err
	}
	if !p.IsActive() || p.Remaining(s.now()) == 0 {
		return poll.VoteResult{}, classpoll_errors.ErrInvalidState
	}

	name := strings.TrimSpace(in.StudentName)
	if name == "" {
		return poll.VoteResult{}, classpoll_errors.Invalid("Student name is required")
	}
	if in.OptionIndex < 0 || in.OptionIndex >= len(p.Options) {
		return poll.VoteResult{}, classpoll_errors.Invalid("Option index is out of range")
	}

	// fast path only; the unique index on (poll_id, student_name) is the authority
	voted, err := s.responses.Exists(ctx, p.ID, name)
	if err != nil {
		return poll.VoteResult{}, err
	}
	if voted {
		return poll.VoteResult{}, classpoll_errors.ErrDuplicateVote
	}

	updated, err := s.responses.RecordVote(ctx, &poll.Response{
		ID:          uuid.New(),
		PollID:      p.ID,
		StudentName: name,
		OptionIndex: in.OptionIndex,
		SubmittedAt: s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return poll.VoteResult{}, err
	}

	// counters and responses move together in one transaction, so the
	// total is taken from the same read as the results
	result := poll.VoteResult{
		PollID:         p.ID,
		Results:        updated.Results(),
		TotalResponses: updated.TotalVotes(),
	}

	if err := s.publisher.Publish(ctx, events.VoteRecorded(result)); err != nil {
		s.logger.Warn("publish failed", zap.String("event", events.EventVoteRecorded), zap.Error(err))
	}
	s.logger.Info("vote recorded",
		zap.String("poll_id", p.ID.String()),
		zap.String("student_name", name),
		zap.Int("option_index", in.OptionIndex),
	)

	return result, nil
}

func (s *VoteService) HasVoted(ctx context.Context, pollID uuid.UUID, studentName string) (bool, error) {
	name := strings.TrimSpace(studentName)
	if name == "" {
		return false, nil
	}
	return s.responses.Exists(ctx, pollID, name)
}
