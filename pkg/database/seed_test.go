package database

import (
	"path/filepath"
	"testing"

	"classpoll/internal/domain/poll"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestSeed(t *testing.T) {
	db, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), logger.Silent)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&poll.Poll{}, &poll.PollOption{}, &poll.Response{}))

	result, err := Seed(db, &SeedConfig{PollCount: 2, StudentsPerPoll: 4, PollDuration: 30, QuestionTemplate: "Q%d"})
	require.NoError(t, err)
	assert.Len(t, result.Polls, 2)
	assert.Equal(t, 8, result.Responses)

	for _, p := range result.Polls {
		assert.Equal(t, poll.StatusEnded, p.Status)
		assert.Equal(t, int64(4), p.TotalVotes())
	}

	assert.True(t, TableExists(db, "responses"))
	count, err := GetTableCount(db, "poll_options")
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	var active int64
	require.NoError(t, db.Model(&poll.Poll{}).Where("status = ?", poll.StatusActive).Count(&active).Error)
	assert.Zero(t, active)
}
