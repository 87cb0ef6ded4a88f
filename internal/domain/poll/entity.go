package poll

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

const DefaultDurationSeconds = 60

// Poll represents polls
type Poll struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Question  string       `gorm:"not null" json:"question"`
	Options   []PollOption `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"options"`
	Duration  int          `gorm:"not null;default:60" json:"duration"`
	Status    Status       `gorm:"type:varchar(16);not null;index:idx_polls_status_created,priority:1" json:"status"`
	CreatedAt time.Time    `gorm:"not null;index:idx_polls_status_created,priority:2,sort:desc" json:"createdAt"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

// PollOption represents poll_options. Position is the index votes refer to.
type PollOption struct {
	PollID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Position int       `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Text     string    `gorm:"not null" json:"text"`
	Votes    int64     `gorm:"not null;default:0" json:"votes"`
}

// OptionResult is a single tally entry as shown to participants.
type OptionResult struct {
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

func (Poll) TableName() string {
	return "polls"
}

func (PollOption) TableName() string {
	return "poll_options"
}

func (p *Poll) IsActive() bool {
	return p.Status == StatusActive
}

// Deadline is the instant at which the poll stops accepting votes.
func (p *Poll) Deadline() time.Time {
	return p.CreatedAt.Add(time.Duration(p.Duration) * time.Second)
}

// Remaining returns the whole seconds left at now, computed from CreatedAt
// and Duration only so that callers recover the same value after missed ticks.
func (p *Poll) Remaining(now time.Time) int {
	if !p.IsActive() {
		return 0
	}
	elapsed := int(now.Sub(p.CreatedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := p.Duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (p *Poll) OptionTexts() []string {
	texts := make([]string, len(p.Options))
	for i, o := range p.Options {
		texts[i] = o.Text
	}
	return texts
}

func (p *Poll) Results() []OptionResult {
	results := make([]OptionResult, len(p.Options))
	for i, o := range p.Options {
		results[i] = OptionResult{Text: o.Text, Votes: o.Votes}
	}
	return results
}

func (p *Poll) TotalVotes() int64 {
	var total int64
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// View is a poll augmented with live response count and remaining time.
type View struct {
	Poll
	TotalResponses int64 `json:"totalResponses"`
	TimeRemaining  int   `json:"timeRemaining"`
}

func NewView(p Poll, totalResponses int64, now time.Time) View {
	return View{Poll: p, TotalResponses: totalResponses, TimeRemaining: p.Remaining(now)}
}
