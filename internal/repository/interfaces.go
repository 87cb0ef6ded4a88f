package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classpoll/internal/domain/poll"
)

type PollRepository interface {
	// Create inserts the poll with its options. Returns ErrConflict when
	// another poll is already active.
	Create(ctx context.Context, p *poll.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (poll.Poll, error)
	GetActive(ctx context.Context) (poll.Poll, error)
	ListByStatus(ctx context.Context, status poll.Status, limit int) ([]poll.Poll, error)

	// MarkEnded transitions an active poll to ended. It reports false when
	// the poll was not active, leaving the row untouched.
	MarkEnded(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error)
}

type ResponseRepository interface {
	Exists(ctx context.Context, pollID uuid.UUID, studentName string) (bool, error)
	CountByPoll(ctx context.Context, pollID uuid.UUID) (int64, error)
	CountByPolls(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID]int64, error)

	// RecordVote stores the response and increments the chosen option in one
	// transaction and returns the poll with its updated tallies, read inside
	// the same transaction.
	RecordVote(ctx context.Context, r *poll.Response) (poll.Poll, error)
}
