package core

import (
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
)

type emitted struct {
	To      domain.ConnID
	Event   string
	Payload any
}

// recorder is an Emitter keeping every emission in order.
type recorder struct {
	mu  sync.Mutex
	out []emitted
}

func (r *recorder) Emit(to domain.ConnID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, emitted{To: to, Event: event, Payload: payload})
}

func (r *recorder) to(conn domain.ConnID) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.out {
		if e.To == conn {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
}

type stubConn struct {
	id   domain.ConnID
	done chan struct{}
}

func newStubConn(id domain.ConnID) *stubConn {
	return &stubConn{id: id, done: make(chan struct{})}
}

func (c *stubConn) ID() domain.ConnID      { return c.id }
func (c *stubConn) Send(string, any) error { return nil }
func (c *stubConn) Close()                 {}
func (c *stubConn) Done() <-chan struct{}  { return c.done }

func snapshot(id domain.UserID, name string) domain.UserSnapshot {
	return domain.UserSnapshot{ID: id, Name: name}
}
