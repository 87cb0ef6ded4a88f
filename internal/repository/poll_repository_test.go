package repository_test

import (
	"context"
	"testing"
	"time"

	"classpoll/internal/domain/poll"
	"classpoll/internal/repository"
	"classpoll/internal/testutil"
	classpoll_errors "classpoll/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPoll(question string, status poll.Status, createdAt time.Time, options ...string) *poll.Poll {
	p := &poll.Poll{
		ID:        uuid.New(),
		Question:  question,
		Duration:  60,
		Status:    status,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
	for i, text := range options {
		p.Options = append(p.Options, poll.PollOption{PollID: p.ID, Position: i, Text: text})
	}
	return p
}

// runPollRepositorySuite runs against any database with the schema applied.
func runPollRepositorySuite(t *testing.T, db *gorm.DB) {
	ctx := context.Background()
	repo := repository.NewPollRepository(db)
	now := time.Now()

	t.Run("create and load keeps option order", func(t *testing.T) {
		p := newPoll("Best color?", poll.StatusEnded, now.Add(-time.Hour), "Red", "Blue", "Green")
		require.NoError(t, repo.Create(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Red", "Blue", "Green"}, got.OptionTexts())
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.EndedAt)
	})

	t.Run("missing poll", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, classpoll_errors.ErrNotFound)
	})

	t.Run("single active poll", func(t *testing.T) {
		_, err := repo.GetActive(ctx)
		require.ErrorIs(t, err, classpoll_errors.ErrNotFound)

		first := newPoll("First", poll.StatusActive, now, "A", "B")
		require.NoError(t, repo.Create(ctx, first))

		second := newPoll("Second", poll.StatusActive, now, "A", "B")
		assert.ErrorIs(t, repo.Create(ctx, second), classpoll_errors.ErrConflict)

		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, active.ID)

		_, err = repo.GetByID(ctx, second.ID)
		assert.ErrorIs(t, err, classpoll_errors.ErrNotFound)
	})

	t.Run("mark ended only once", func(t *testing.T) {
		active, err := repo.GetActive(ctx)
		require.NoError(t, err)

		endedAt := now.Add(time.Minute).UTC().Truncate(time.Microsecond)
		changed, err := repo.MarkEnded(ctx, active.ID, endedAt)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = repo.MarkEnded(ctx, active.ID, endedAt.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)

		got, err := repo.GetByID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, poll.StatusEnded, got.Status)
		require.NotNil(t, got.EndedAt)
		assert.True(t, endedAt.Equal(*got.EndedAt))

		_, err = repo.GetActive(ctx)
		assert.ErrorIs(t, err, classpoll_errors.ErrNotFound)
	})

	t.Run("list by status newest first", func(t *testing.T) {
		list, err := repo.ListByStatus(ctx, poll.StatusEnded, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "First", list[0].Question)
		assert.Equal(t, "Best color?", list[1].Question)
		assert.Len(t, list[1].Options, 3)

		limited, err := repo.ListByStatus(ctx, poll.StatusEnded, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func runResponseRepositorySuite(t *testing.T, db *gorm.DB) {
	ctx := context.Background()
	polls := repository.NewPollRepository(db)
	responses := repository.NewResponseRepository(db)

	p := newPoll("Best color?", poll.StatusActive, time.Now(), "Red", "Blue")
	require.NoError(t, polls.Create(ctx, p))

	vote := func(name string, option int) (poll.Poll, error) {
		return responses.RecordVote(ctx, &poll.Response{
			ID:          uuid.New(),
			PollID:      p.ID,
			StudentName: name,
			OptionIndex: option,
			SubmittedAt: time.Now().UTC().Truncate(time.Microsecond),
		})
	}

	t.Run("record vote increments tally", func(t *testing.T) {
		updated, err := vote("Amy", 0)
		require.NoError(t, err)
		assert.Equal(t, []poll.OptionResult{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 0}}, updated.Results())

		exists, err := responses.Exists(ctx, p.ID, "Amy")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicate vote rolls back", func(t *testing.T) {
		_, err := vote("Amy", 1)
		require.ErrorIs(t, err, classpoll_errors.ErrDuplicateVote)

		got, err := polls.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.TotalVotes())

		count, err := responses.CountByPoll(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown option rolls back", func(t *testing.T) {
		_, err := vote("Ben", 5)
		require.ErrorIs(t, err, classpoll_errors.ErrInvalidState)

		exists, err := responses.Exists(ctx, p.ID, "Ben")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("count by polls", func(t *testing.T) {
		_, err := vote("Ben", 1)
		require.NoError(t, err)

		other := uuid.New()
		counts, err := responses.CountByPolls(ctx, []uuid.UUID{p.ID, other})
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[p.ID])
		assert.Zero(t, counts[other])

		empty, err := responses.CountByPolls(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("vote after end is rejected", func(t *testing.T) {
		changed, err := polls.MarkEnded(ctx, p.ID, time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, err)
		require.True(t, changed)

		_, err = vote("Cara", 0)
		require.ErrorIs(t, err, classpoll_errors.ErrInvalidState)

		exists, err := responses.Exists(ctx, p.ID, "Cara")
		require.NoError(t, err)
		assert.False(t, exists)

		got, err := polls.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []poll.OptionResult{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 1}}, got.Results())
	})
}

func TestPollRepositorySQLite(t *testing.T) {
	runPollRepositorySuite(t, testutil.SetupTestDB(t))
}

func TestResponseRepositorySQLite(t *testing.T) {
	runResponseRepositorySuite(t, testutil.SetupTestDB(t))
}

func TestDropSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, repository.DropSchema(db))
	assert.False(t, db.Migrator().HasTable(&poll.Poll{}))
	assert.False(t, db.Migrator().HasTable(&poll.Response{}))

	// re-running the migration is safe
	require.NoError(t, repository.InitSchema(db))
	require.NoError(t, repository.InitSchema(db))
	assert.True(t, db.Migrator().HasTable(&poll.PollOption{}))
}
