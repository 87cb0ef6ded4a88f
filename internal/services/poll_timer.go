package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PollTimers owns the process-local expiry timer and tick loop of each
// active poll. Nothing here is persisted; a restart loses every entry.
type PollTimers struct {
	mu           sync.Mutex
	entries      map[uuid.UUID]*pollTimer
	tickInterval time.Duration
}

type pollTimer struct {
	expiry *time.Timer
	stop   chan struct{}

	// mu is held for the whole of an OnTick call, so cancel returns only
	// after any in-flight tick has finished.
	mu      sync.Mutex
	stopped bool
}

// TimerCallbacks are invoked from timer goroutines, never with the registry
// lock held. OnTick must not cancel or re-arm its own poll.
type TimerCallbacks struct {
	OnExpire func(pollID uuid.UUID)
	OnTick   func(pollID uuid.UUID)
}

func NewPollTimers(tickInterval time.Duration) *PollTimers {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &PollTimers{
		entries:      make(map[uuid.UUID]*pollTimer),
		tickInterval: tickInterval,
	}
}

// Arm schedules expiry after `after` and starts the tick loop. Re-arming a
// poll replaces its previous timers.
func (t *PollTimers) Arm(pollID uuid.UUID, after time.Duration, cb TimerCallbacks) {
	if after < 0 {
		after = 0
	}

	entry := &pollTimer{stop: make(chan struct{})}

	t.mu.Lock()
	if prev, ok := t.entries[pollID]; ok {
		prev.cancel()
	}
	t.entries[pollID] = entry
	entry.expiry = time.AfterFunc(after, func() {
		if cb.OnExpire != nil {
			cb.OnExpire(pollID)
		}
	})
	t.mu.Unlock()

	if cb.OnTick != nil {
		go t.tickLoop(pollID, entry, cb.OnTick)
	}
}

func (t *PollTimers) tickLoop(pollID uuid.UUID, entry *pollTimer, onTick func(uuid.UUID)) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-entry.stop:
			return
		case <-ticker.C:
			entry.tick(pollID, onTick)
		}
	}
}

func (p *pollTimer) tick(pollID uuid.UUID, onTick func(uuid.UUID)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	onTick(pollID)
}

// Cancel stops the timers of pollID. Once it returns no further tick for
// that poll is delivered. Safe to call for unknown ids.
func (t *PollTimers) Cancel(pollID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[pollID]
	if !ok {
		return false
	}
	entry.cancel()
	delete(t.entries, pollID)
	return true
}

func (t *PollTimers) IsArmed(pollID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[pollID]
	return ok
}

func (t *PollTimers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// StopAll cancels every timer. Used on shutdown.
func (t *PollTimers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, entry := range t.entries {
		entry.cancel()
		delete(t.entries, id)
	}
}

func (p *pollTimer) cancel() {
	p.expiry.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.stop)
	}
}
