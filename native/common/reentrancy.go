package common

import "errors"

// ErrReentrantCall is returned when a guarded operation is entered while
// another operation of the same class is still executing.
var ErrReentrantCall = errors.New("reentrant call rejected")

// ReentrancyGuard rejects nested entry into a class of operations. It is not a
// mutex: callers are expected to be serialized already, and a nested call fails
// immediately instead of blocking.
type ReentrancyGuard struct {
	entered map[string]bool
}

// Enter marks class as executing and returns a release function. A second
// Enter for the same class before release returns ErrReentrantCall.
func (g *ReentrancyGuard) Enter(class string) (func(), error) {
	if g.entered == nil {
		g.entered = make(map[string]bool)
	}
	if g.entered[class] {
		return func() {}, ErrReentrantCall
	}
	g.entered[class] = true
	return func() { delete(g.entered, class) }, nil
}

// Active reports whether class is currently held.
func (g *ReentrancyGuard) Active(class string) bool {
	return g.entered[class]
}
