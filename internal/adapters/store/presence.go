package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// MemoryPresence is the single-node Presence. Entries not refreshed within
// ttl are treated as gone.
type MemoryPresence struct {
	mu      sync.Mutex
	nodeID  string
	ttl     time.Duration
	entries map[domain.UserID]map[domain.ConnID]core.PresenceEntry
	now     func() time.Time
}

func NewMemoryPresence(nodeID string, ttl time.Duration) *MemoryPresence {
	return &MemoryPresence{
		nodeID:  nodeID,
		ttl:     ttl,
		entries: make(map[domain.UserID]map[domain.ConnID]core.PresenceEntry),
		now:     time.Now,
	}
}

func (p *MemoryPresence) Add(_ context.Context, user domain.UserID, conn domain.ConnID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns, ok := p.entries[user]
	if !ok {
		conns = make(map[domain.ConnID]core.PresenceEntry)
		p.entries[user] = conns
	}
	conns[conn] = core.PresenceEntry{ConnID: conn, NodeID: p.nodeID, SeenAt: p.now()}
	return nil
}

func (p *MemoryPresence) Remove(_ context.Context, user domain.UserID, conn domain.ConnID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries[user], conn)
	if len(p.entries[user]) == 0 {
		delete(p.entries, user)
	}
	return nil
}

func (p *MemoryPresence) Refresh(ctx context.Context, user domain.UserID, conn domain.ConnID) error {
	return p.Add(ctx, user, conn)
}

func (p *MemoryPresence) Connections(_ context.Context, user domain.UserID) ([]core.PresenceEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-p.ttl)
	out := make([]core.PresenceEntry, 0, len(p.entries[user]))
	for id, e := range p.entries[user] {
		if e.SeenAt.Before(cutoff) {
			delete(p.entries[user], id)
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b core.PresenceEntry) int { return cmp.Compare(a.ConnID, b.ConnID) })
	return out, nil
}
