// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

type (
	UserID string
	ConnID string
)

// UserSnapshot is the external user view carried inside call events.
// It is supplied by the client and never persisted by the core.
type UserSnapshot struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NewUserSnapshot is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUserSnapshot(id UserID, name, avatar string) (UserSnapshot, error) {
	u := UserSnapshot{Avatar: avatar}
	if err := u.SetID(id); err != nil {
		return UserSnapshot{}, err
	}
	if err := u.SetName(name); err != nil {
		return UserSnapshot{}, err
	}
	return u, nil
}

func (u *UserSnapshot) SetID(id UserID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	u.ID = id
	return nil
}

func (u *UserSnapshot) SetName(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Name = name
	return nil
}
