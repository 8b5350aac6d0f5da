// Package iterator provides the forward-only cursor a connection worker uses
// to stream one query's matches.
package iterator

import (
	"errors"

	"github.com/PippiShao/IMDB/internal/indexer/registry"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

var (
	ErrExhausted = errors.New("iterator exhausted")
	ErrClosed    = errors.New("iterator closed")
)

// State is the cursor's lifecycle phase.
type State int

const (
	StateFresh State = iota
	StateActive
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Iterator walks an ordered id sequence once. It is not safe for concurrent
// use; each iterator belongs to the worker that created it.
type Iterator struct {
	ids      []registry.DocID
	count    int
	pos      int
	advanced bool
	closed   bool
}

// New returns a Fresh iterator over ids. An empty result has no iterator, so
// an empty sequence fails with ErrInvalidInput.
func New(ids []registry.DocID) (*Iterator, error) {
	if len(ids) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "new iterator", "empty result sequence")
	}
	return &Iterator{ids: ids, count: len(ids)}, nil
}

// Count is fixed at creation and valid in every state.
func (it *Iterator) Count() int {
	return it.count
}

// Position is the index of the current item, or Count once exhausted.
func (it *Iterator) Position() int {
	return it.pos
}

func (it *Iterator) State() State {
	switch {
	case it.closed:
		return StateClosed
	case it.pos >= it.count:
		return StateExhausted
	case !it.advanced:
		return StateFresh
	default:
		return StateActive
	}
}

// Current returns the id at the cursor.
func (it *Iterator) Current() (registry.DocID, error) {
	if it.closed {
		return 0, ErrClosed
	}
	if it.pos >= it.count {
		return 0, ErrExhausted
	}
	return it.ids[it.pos], nil
}

// Advance moves to the next item and reports whether one is available.
// Exactly Count calls move the cursor from its first item to Exhausted.
func (it *Iterator) Advance() bool {
	if it.closed || it.pos >= it.count {
		return false
	}
	it.advanced = true
	it.pos++
	return it.pos < it.count
}

// Close releases the id sequence. A second Close returns ErrClosed.
func (it *Iterator) Close() error {
	if it.closed {
		return ErrClosed
	}
	it.closed = true
	it.ids = nil
	return nil
}
