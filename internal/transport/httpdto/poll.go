package httpdto

import "classpoll/internal/domain/poll"

// CreatePollRequest is used for POST /polls
type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

// VoteRequest is used for POST /polls/:id/vote. OptionIndex is a pointer so
// a missing field can be told apart from option 0.
type VoteRequest struct {
	OptionIndex *int   `json:"optionIndex"`
	StudentName string `json:"studentName"`
}

// VoteResponse keeps results at the top level, as existing clients expect.
type VoteResponse struct {
	Success        bool                `json:"success"`
	Results        []poll.OptionResult `json:"results"`
	TotalResponses int64               `json:"totalResponses"`
}

// PollListResponse always carries data, an empty history encodes as [].
type PollListResponse struct {
	Success bool        `json:"success"`
	Data    []poll.View `json:"data"`
}

type HasVotedResponse struct {
	Success  bool `json:"success"`
	HasVoted bool `json:"hasVoted"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
