package testutil

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"classpoll/internal/events"
	"classpoll/internal/repository"
	"classpoll/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh sqlite database in a temp dir with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "classpoll_test.db")
	db, err := database.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.InitSchema(db))
	return db
}

// Recorder is an events.Publisher that keeps everything it is given.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events called name, in order.
func (r *Recorder) Named(name string) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Count(name string) int {
	return len(r.Named(name))
}

// DecodeData round-trips an event payload through JSON into v.
func DecodeData(t *testing.T, e events.Event, v interface{}) {
	t.Helper()
	b, err := json.Marshal(e.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}
