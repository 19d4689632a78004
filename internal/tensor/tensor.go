// Package tensor defines the tensor storage contract the scheduler
// consumes, plus a reference, in-memory implementation used by tests and
// the CLI demo. The real distributed tensor engine is an external
// collaborator and out of scope; this package only needs to behave
// correctly under the operations the scheduler actually calls.
package tensor

import "github.com/coretensor/tensorsched/internal/comm"

// ID is the stable, cross-rank-consistent identity used to order tensors
// in sets/maps. Every rank must agree on tensor identity without
// communicating, so IDs are assigned deterministically at construction
// time by the caller's own bookkeeping, not by a shared counter across
// processes.
type ID int64

// Tensor is the surface the scheduler needs from the tensor storage engine.
type Tensor interface {
	// TID returns this tensor's stable identity.
	TID() ID

	// CloneOnto creates a logically equivalent tensor bound to a different
	// world (sub-communicator).
	CloneOnto(w comm.World) Tensor

	// AddToSubworld scatters this tensor's contribution into local,
	// collective on the parent world.
	AddToSubworld(local Tensor, alpha, beta float64) error

	// AddFromSubworld gathers local's contribution back into this tensor,
	// collective on the parent world.
	AddFromSubworld(local Tensor, alpha, beta float64) error
}

// ElementMultiplier is implemented by tensor backends that support
// in-place elementwise multiplication against another tensor of the same
// shape, the read-modify-write step a MULTIPLY operation needs. Not part
// of the base Tensor contract since SET/SUM/SUBTRACT never need it.
type ElementMultiplier interface {
	MulElem(other Tensor) error
}

// Set is an ordered set of tensors keyed by ID, so every rank can iterate
// the same collection in the same order without a communication round.
type Set struct {
	byID  map[ID]Tensor
	order []ID
}

// NewSet returns an empty tensor set.
func NewSet() *Set {
	return &Set{byID: make(map[ID]Tensor)}
}

// Add inserts t into the set, ignoring duplicates by ID.
func (s *Set) Add(t Tensor) {
	if t == nil {
		return
	}
	id := t.TID()
	if _, ok := s.byID[id]; ok {
		return
	}
	s.byID[id] = t
	s.order = append(s.order, id)
	// Keep order sorted by ID so every rank iterates identically without
	// needing to agree on insertion order.
	for i := len(s.order) - 1; i > 0 && s.order[i-1] > s.order[i]; i-- {
		s.order[i-1], s.order[i] = s.order[i], s.order[i-1]
	}
}

// Contains reports whether id is present in the set.
func (s *Set) Contains(id ID) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of tensors in the set.
func (s *Set) Len() int { return len(s.order) }

// Ordered returns the set's tensors in ascending TID order, the order every
// rank agrees on without communication.
func (s *Set) Ordered() []Tensor {
	out := make([]Tensor, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// Get returns the tensor for id, if present.
func (s *Set) Get(id ID) (Tensor, bool) {
	t, ok := s.byID[id]
	return t, ok
}
