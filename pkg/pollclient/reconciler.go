package pollclient

import (
	"sync"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"

	"github.com/google/uuid"
)

// Snapshot is the client side view of the current poll.
type Snapshot struct {
	PollID         uuid.UUID
	Question       string
	Options        []string
	Results        []poll.OptionResult
	TotalResponses int64
	TimeRemaining  int
	Status         poll.Status
}

func (s Snapshot) Ended() bool {
	return s.Status == poll.StatusEnded
}

// Reconciler merges REST snapshots and push events into one current poll.
// Both feeds may deliver stale or reordered data; the rules are:
//   - data for a different poll id than the current one is ignored, except
//     a snapshot or pollCreated of a new active poll, which replaces it
//   - tallies only move forward (higher totalResponses wins)
//   - once pollEnded arrives the results are frozen
type Reconciler struct {
	mu       sync.Mutex
	current  *Snapshot
	onChange func(Snapshot)
}

// NewReconciler calls onChange with a copy of the new state after every
// change. It runs without the lock held, so it may read the Reconciler.
func NewReconciler(onChange func(Snapshot)) *Reconciler {
	return &Reconciler{onChange: onChange}
}

func (r *Reconciler) Current() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Snapshot{}, false
	}
	return copySnapshot(*r.current), true
}

// ApplySnapshot merges a full poll state from REST or an activePoll reply.
func (r *Reconciler) ApplySnapshot(s Snapshot) bool {
	r.mu.Lock()
	return r.release(r.applySnapshot(s))
}

func (r *Reconciler) applySnapshot(s Snapshot) bool {
	cur := r.current
	switch {
	case cur == nil || cur.PollID != s.PollID:
		if s.Ended() && cur != nil && !cur.Ended() {
			// an old ended poll never displaces a running one
			return false
		}
		next := copySnapshot(s)
		r.current = &next
	case cur.Ended():
		return false
	default:
		if s.Ended() {
			cur.Status = poll.StatusEnded
			cur.TimeRemaining = 0
			cur.Results = copyResults(s.Results)
			cur.TotalResponses = s.TotalResponses
			break
		}
		if s.TotalResponses >= cur.TotalResponses {
			cur.Results = copyResults(s.Results)
			cur.TotalResponses = s.TotalResponses
		}
		cur.TimeRemaining = s.TimeRemaining
	}
	return true
}

// ApplyNoActive handles a 404 from /active or a noActivePoll reply. A
// running snapshot whose timer already reached zero is marked ended; anything
// else is kept, since the reply may predate a newer poll.
func (r *Reconciler) ApplyNoActive() bool {
	r.mu.Lock()
	if r.current == nil || r.current.Ended() || r.current.TimeRemaining > 0 {
		return r.release(false)
	}
	r.current.Status = poll.StatusEnded
	return r.release(true)
}

// ApplyEvent merges one push event. It reports whether the state changed.
func (r *Reconciler) ApplyEvent(env events.Envelope) (bool, error) {
	switch env.Event {
	case events.EventPollCreated:
		var p events.PollCreatedPayload
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		results := make([]poll.OptionResult, len(p.Options))
		for i, text := range p.Options {
			results[i] = poll.OptionResult{Text: text}
		}
		return r.ApplySnapshot(Snapshot{
			PollID:        p.PollID,
			Question:      p.Question,
			Options:       p.Options,
			Results:       results,
			TimeRemaining: p.Duration,
			Status:        poll.StatusActive,
		}), nil

	case events.EventActivePoll:
		var p events.ActivePollPayload
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		return r.ApplySnapshot(Snapshot{
			PollID:         p.PollID,
			Question:       p.Question,
			Options:        p.Options,
			Results:        p.Results,
			TotalResponses: p.TotalResponses,
			TimeRemaining:  p.TimeRemaining,
			Status:         poll.StatusActive,
		}), nil

	case events.EventNoActivePoll:
		return r.ApplyNoActive(), nil

	case events.EventTimerTick:
		var p events.TimerTickPayload
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		return r.update(p.PollID, func(cur *Snapshot) bool {
			if cur.TimeRemaining == p.TimeRemaining {
				return false
			}
			cur.TimeRemaining = p.TimeRemaining
			return true
		}), nil

	case events.EventVoteRecorded, events.EventPollResults:
		var p struct {
			PollID         uuid.UUID           `json:"pollId"`
			Results        []poll.OptionResult `json:"results"`
			TotalResponses int64               `json:"totalResponses"`
		}
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		return r.update(p.PollID, func(cur *Snapshot) bool {
			if p.TotalResponses < cur.TotalResponses {
				return false
			}
			cur.Results = copyResults(p.Results)
			cur.TotalResponses = p.TotalResponses
			return true
		}), nil

	case events.EventPollEnded:
		var p events.PollEndedPayload
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		return r.update(p.PollID, func(cur *Snapshot) bool {
			cur.Status = poll.StatusEnded
			cur.TimeRemaining = 0
			cur.Results = copyResults(p.Results)
			cur.TotalResponses = p.TotalResponses
			return true
		}), nil
	}
	return false, nil
}

// update applies fn to the current snapshot when it matches pollID and is
// still running.
func (r *Reconciler) update(pollID uuid.UUID, fn func(cur *Snapshot) bool) bool {
	r.mu.Lock()
	if r.current == nil || r.current.PollID != pollID || r.current.Ended() {
		return r.release(false)
	}
	return r.release(fn(r.current))
}

// release unlocks r.mu, then reports the change to onChange.
func (r *Reconciler) release(changed bool) bool {
	var snap Snapshot
	if changed {
		snap = copySnapshot(*r.current)
	}
	r.mu.Unlock()

	if changed && r.onChange != nil {
		r.onChange(snap)
	}
	return changed
}

func copySnapshot(s Snapshot) Snapshot {
	s.Options = append([]string(nil), s.Options...)
	s.Results = copyResults(s.Results)
	return s
}

func copyResults(results []poll.OptionResult) []poll.OptionResult {
	return append([]poll.OptionResult(nil), results...)
}
