package core

import "github.com/dkeye/Huddle/internal/domain"

// Fanout resolves target users into their live connections.
// It holds no state of its own, so the result always reflects the registry
// at the moment of the call.
type Fanout struct {
	reg *Registry
}

func NewFanout(reg *Registry) *Fanout {
	return &Fanout{reg: reg}
}

// Resolve maps users through the registry and unions the connection sets.
// Users without a live connection are returned in offline; nothing is queued for them.
func (f *Fanout) Resolve(users ...domain.UserID) (targets []domain.ConnID, offline []domain.UserID) {
	seen := make(set[domain.ConnID])
	for _, u := range users {
		conns := f.reg.ConnectionsFor(u)
		if len(conns) == 0 {
			offline = append(offline, u)
			continue
		}
		for _, c := range conns {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			targets = append(targets, c)
		}
	}
	return targets, offline
}
