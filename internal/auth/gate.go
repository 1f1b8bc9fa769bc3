package auth

import (
	"errors"
)

// ErrInvalidOwner is returned when a gate is constructed without an owner.
var ErrInvalidOwner = errors.New("owner account is invalid")

// StaticGate authorizes a single fixed owner account for admin operations.
type StaticGate struct {
	owner string
}

// NewStaticGate creates a gate that recognizes exactly one owner.
func NewStaticGate(owner string) (*StaticGate, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	return &StaticGate{owner: owner}, nil
}

// IsOwner reports whether caller is the designated vault owner.
func (g *StaticGate) IsOwner(caller string) bool {
	return caller != "" && caller == g.owner
}
