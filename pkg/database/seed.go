package database

import (
	"fmt"
	"log"
	"time"

	"classpoll/internal/domain/poll"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	PollCount        int
	StudentsPerPoll  int
	PollDuration     int
	QuestionTemplate string
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		PollCount:        3,
		StudentsPerPoll:  8,
		PollDuration:     60,
		QuestionTemplate: "Sample question %d",
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Polls     []poll.Poll
	Responses int
}

var seedOptions = []string{"Option A", "Option B", "Option C"}

// Seed inserts ended polls with responses so the history view has data.
// No active poll is created.
func Seed(db *gorm.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	err := db.Transaction(func(tx *gorm.DB) error {
		start := time.Now().Add(-time.Duration(cfg.PollCount) * time.Hour)
		for i := 0; i < cfg.PollCount; i++ {
			p, responses := seedPoll(cfg, i, start.Add(time.Duration(i)*time.Hour))
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to seed poll %d: %w", i, err)
			}
			if len(responses) > 0 {
				if err := tx.Create(&responses).Error; err != nil {
					return fmt.Errorf("failed to seed responses for poll %d: %w", i, err)
				}
			}
			result.Polls = append(result.Polls, p)
			result.Responses += len(responses)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

// seedPoll builds one ended poll whose option counters match its responses.
func seedPoll(cfg *SeedConfig, n int, createdAt time.Time) (poll.Poll, []poll.Response) {
	id := uuid.New()
	endedAt := createdAt.Add(time.Duration(cfg.PollDuration) * time.Second)

	p := poll.Poll{
		ID:        id,
		Question:  fmt.Sprintf(cfg.QuestionTemplate, n+1),
		Duration:  cfg.PollDuration,
		Status:    poll.StatusEnded,
		CreatedAt: createdAt,
		EndedAt:   &endedAt,
	}
	for i, text := range seedOptions {
		p.Options = append(p.Options, poll.PollOption{PollID: id, Position: i, Text: text})
	}

	responses := make([]poll.Response, 0, cfg.StudentsPerPoll)
	for s := 0; s < cfg.StudentsPerPoll; s++ {
		option := (s + n) % len(seedOptions)
		p.Options[option].Votes++
		responses = append(responses, poll.Response{
			ID:          uuid.New(),
			PollID:      id,
			StudentName: fmt.Sprintf("Student %d", s+1),
			OptionIndex: option,
			SubmittedAt: createdAt.Add(time.Duration(s+1) * time.Second),
		})
	}
	return p, responses
}

// TableExists reports whether table is present.
func TableExists(db *gorm.DB, table string) bool {
	return db.Migrator().HasTable(table)
}

// GetTableCount returns the row count of table.
func GetTableCount(db *gorm.DB, table string) (int64, error) {
	var count int64
	err := db.Table(table).Count(&count).Error
	return count, err
}
