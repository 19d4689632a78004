// Package expr defines the symbolic expression tree contract the scheduler
// consumes from the (out-of-scope) expression/cost-estimation engine, plus
// a small reference implementation (leaves, scaling, sum, contraction)
// that is enough to build and cost real schedules for tests and the CLI
// demo.
package expr

import "github.com/coretensor/tensorsched/internal/tensor"

// Term is a symbolic right-hand-side expression.
type Term interface {
	// GetInputs inserts every tensor this term reads into set.
	GetInputs(set *tensor.Set)

	// EstimateCost returns a deterministic, strictly positive cost
	// estimate for evaluating this term into lhs.
	EstimateCost(lhs tensor.Tensor) int64

	// Clone deep-clones the term, substituting any tensor present in
	// remap for its mapped replacement.
	Clone(remap map[tensor.ID]tensor.Tensor) Term

	// Eval numerically evaluates the term.
	//
	// The real distributed contraction engine this contract models
	// evaluates terms through operator overloading, which Go doesn't
	// have and which isn't ours to call anyway. The reference terms in
	// this package expose evaluation explicitly instead: it's the
	// minimum surface needed to execute a schedule end to end against
	// the reference Dense backend.
	Eval() (*tensor.Dense, error)
}

// IndexedTensor is the left-hand-side handle an Operation writes into;
// Parent is the underlying storage tensor it indexes.
type IndexedTensor struct {
	Parent tensor.Tensor
}

// Clone substitutes Parent through remap if present, otherwise returns an
// IndexedTensor pointing at the same parent.
func (it *IndexedTensor) Clone(remap map[tensor.ID]tensor.Tensor) *IndexedTensor {
	if it == nil || it.Parent == nil {
		return it
	}
	if remap != nil {
		if repl, ok := remap[it.Parent.TID()]; ok {
			return &IndexedTensor{Parent: repl}
		}
	}
	return &IndexedTensor{Parent: it.Parent}
}

func remapTensor(remap map[tensor.ID]tensor.Tensor, t tensor.Tensor) tensor.Tensor {
	if t == nil {
		return nil
	}
	if remap == nil {
		return t
	}
	if repl, ok := remap[t.TID()]; ok {
		return repl
	}
	return t
}
