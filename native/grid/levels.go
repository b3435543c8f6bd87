package grid

import (
	"bytes"
	"fmt"
	"sort"
)

// refreshLevel recomputes acc's level from its position count and moves it
// between the per-level member sets. acc itself is persisted by the caller.
func (e *Engine) refreshLevel(acc *Account) error {
	next := e.params.LevelFor(uint64(len(acc.Positions)))
	prev := acc.Level
	if next == prev {
		return nil
	}
	if prev != LevelNone {
		if err := e.updateMembers(prev, acc.Address, false); err != nil {
			return err
		}
	}
	if next != LevelNone {
		if err := e.updateMembers(next, acc.Address, true); err != nil {
			return err
		}
	}
	acc.Level = next
	e.emit(LevelChangedEvent(acc.Address, prev, next, len(acc.Positions)))
	return nil
}

func (e *Engine) updateMembers(level Level, addr [20]byte, insert bool) error {
	members, err := e.state.GridLevelMembers(level)
	if err != nil {
		return err
	}
	idx := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i][:], addr[:]) >= 0
	})
	found := idx < len(members) && members[idx] == addr
	switch {
	case insert && !found:
		members = append(members, [20]byte{})
		copy(members[idx+1:], members[idx:])
		members[idx] = addr
	case !insert && found:
		members = append(members[:idx], members[idx+1:]...)
	default:
		return nil
	}
	return e.state.GridLevelMembersPut(level, members)
}

// LevelMembers returns the accounts currently classified at level in address
// order.
func (e *Engine) LevelMembers(level Level) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if level == LevelNone || !level.Valid() {
		return nil, fmt.Errorf("%w: level %s has no member index", ErrInvalidInput, level)
	}
	members, err := e.state.GridLevelMembers(level)
	if err != nil {
		return nil, err
	}
	return append([][20]byte(nil), members...), nil
}
