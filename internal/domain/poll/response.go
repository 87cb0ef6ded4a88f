package poll

import (
	"time"

	"github.com/google/uuid"
)

// Response represents responses. One row per (poll, student name).
type Response struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PollID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_responses_poll_student,priority:1" json:"pollId"`
	StudentName string    `gorm:"not null;uniqueIndex:idx_responses_poll_student,priority:2" json:"studentName"`
	OptionIndex int       `gorm:"not null" json:"optionIndex"`
	SubmittedAt time.Time `gorm:"not null" json:"submittedAt"`
}

func (Response) TableName() string {
	return "responses"
}

// VoteResult is returned to the voter and fanned out to every participant.
type VoteResult struct {
	PollID         uuid.UUID      `json:"pollId"`
	Results        []OptionResult `json:"results"`
	TotalResponses int64          `json:"totalResponses"`
}
