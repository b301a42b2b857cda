package app

import (
	"strings"

	"github.com/dkeye/Huddle/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn core.Connection) BackpressureAction
}

// KickPolicy closes slow connections; the transport then runs the normal
// disconnect cleanup.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.Connection) BackpressureAction {
	return KickMember
}

// DropPolicy loses the event and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.Connection) BackpressureAction {
	return DropFrame
}

func PolicyFor(name string) Policy {
	if strings.EqualFold(name, "drop") {
		return DropPolicy{}
	}
	return KickPolicy{}
}
