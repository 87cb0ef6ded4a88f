package services

import (
	"sort"
	"strings"
	"sync"

	"classpoll/internal/domain/session"
)

// PresenceService tracks who is connected, keyed by connection id. State is
// process-local and starts empty on every boot.
type PresenceService struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
	seq     uint64
}

type presenceEntry struct {
	participant session.Participant
	joinedSeq   uint64
}

func NewPresenceService() *PresenceService {
	return &PresenceService{entries: make(map[string]presenceEntry)}
}

// Join records or replaces the identity of a connection and returns the
// full roster.
func (p *PresenceService) Join(socketID, name string, role session.Role) []session.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[socketID]
	if !ok {
		p.seq++
		entry.joinedSeq = p.seq
	}
	entry.participant = session.Participant{Name: name, Role: role, SocketID: socketID}
	p.entries[socketID] = entry

	return p.rosterLocked()
}

// Leave forgets a connection. removed is false when it never joined.
func (p *PresenceService) Leave(socketID string) (roster []session.Participant, removed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[socketID]; !ok {
		return p.rosterLocked(), false
	}
	delete(p.entries, socketID)
	return p.rosterLocked(), true
}

// RemoveStudent drops every student connection using name and returns the
// removed entries so the caller can close those connections.
func (p *PresenceService) RemoveStudent(name string) (removed []session.Participant, roster []session.Participant) {
	name = strings.TrimSpace(name)

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, entry := range p.entries {
		if entry.participant.Role == session.RoleStudent && entry.participant.Name == name {
			removed = append(removed, entry.participant)
			delete(p.entries, id)
		}
	}
	return removed, p.rosterLocked()
}

func (p *PresenceService) Get(socketID string) (session.Participant, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[socketID]
	return entry.participant, ok
}

// Roster lists participants in join order.
func (p *PresenceService) Roster() []session.Participant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rosterLocked()
}

func (p *PresenceService) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

func (p *PresenceService) rosterLocked() []session.Participant {
	entries := make([]presenceEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].joinedSeq < entries[j].joinedSeq })

	roster := make([]session.Participant, len(entries))
	for i, e := range entries {
		roster[i] = e.participant
	}
	return roster
}
