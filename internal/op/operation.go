// Package op implements the Operation entity: one recorded tensor
// assignment, its read/write sets, its dependency bookkeeping, and its
// execution against an optional tensor remap.
package op

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/coretensor/tensorsched/internal/expr"
	"github.com/coretensor/tensorsched/internal/tensor"
)

// Kind is the operation's assignment flavor.
type Kind int

const (
	// None is a dummy root, synthesized as the "latest writer" anchor for
	// a tensor read without a prior write.
	None Kind = iota
	Set
	Sum
	Subtract
	Multiply
)

func (k Kind) String() string {
	switch k {
	case None:
		return "NONE"
	case Set:
		return "SET"
	case Sum:
		return "SUM"
	case Subtract:
		return "SUBTRACT"
	case Multiply:
		return "MULTIPLY"
	default:
		return "UNKNOWN"
	}
}

// FatalError marks a programming error: unknown op kind, None passed to
// New, executing while recording, or a non-positive cost estimate. (An
// operation whose lhs has no parent tensor is reported as a returned error
// instead.) These are thrown via exceptions.Throw rather than returned, since they
// are always bugs rather than recoverable input errors; callers that want
// a readable message instead of a raw panic should defer
// exceptions.Catch[*FatalError] at the boundary that runs schedules.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

func fatalf(format string, args ...any) {
	exceptions.Throw(&FatalError{Msg: fmt.Sprintf(format, args...)})
}

// Operation is one recorded tensor assignment: kind, lhs (the indexed
// tensor written), rhs (the symbolic expression read), plus the dependency
// bookkeeping the graph builder and scheduler maintain around it.
type Operation struct {
	Kind Kind
	Lhs  *expr.IndexedTensor
	Rhs  expr.Term

	// Successors must wait for this operation to complete.
	Successors []*Operation

	// Reads holds every later operation that read this op's lhs tensor
	// after it wrote it, used for write-after-read bookkeeping.
	Reads []*Operation

	// DependencyCount is the total unsatisfied-predecessor count computed
	// at recording time; DependencyLeft is the live counter the scheduler
	// decrements during execution.
	DependencyCount int
	DependencyLeft  int

	costOnce   sync.Once
	cachedCost int64

	// name is used only for observability, e.g. wave-trace dumps.
	name string
}

// New constructs a typed assignment operation. kind must not be None; use
// NewRoot for the dummy anchor.
func New(kind Kind, lhs *expr.IndexedTensor, rhs expr.Term, name string) *Operation {
	if kind == None {
		fatalf("op: New called with None kind; use NewRoot")
	}
	return &Operation{Kind: kind, Lhs: lhs, Rhs: rhs, name: name}
}

// NewRoot constructs a dummy NONE root, the synthesized "latest writer" for
// a tensor read without a prior write.
func NewRoot() *Operation {
	return &Operation{Kind: None}
}

// Runtime is the type-erased operation handle Schedule.AddOperation
// accepts. A caller that hands AddOperation something other than an
// *Operation triggers a FatalError rather than a silent no-op.
type Runtime interface {
	runtimeOperation()
}

func (o *Operation) runtimeOperation() {}

// IsDummy reports whether this is a synthesized NONE root.
func (o *Operation) IsDummy() bool { return o.Kind == None }

// Name returns the operation's display name for observability; dummy
// roots are named after nothing in particular.
func (o *Operation) Name() string {
	if o.name != "" {
		return o.name
	}
	if o.IsDummy() {
		return "<root>"
	}
	return "<op>"
}

// Outputs returns this operation's single output tensor ID. It is a
// programming error to call this on a dummy root or an operation whose
// lhs has no parent tensor.
func (o *Operation) Outputs() (tensor.ID, error) {
	if o.Lhs == nil || o.Lhs.Parent == nil {
		return 0, errors.Errorf("op: %s has no lhs parent tensor", o.Kind)
	}
	return o.Lhs.Parent.TID(), nil
}

// GetOutputs inserts this operation's single output tensor into set.
func (o *Operation) GetOutputs(set *tensor.Set) error {
	if o.Lhs == nil || o.Lhs.Parent == nil {
		return errors.Errorf("op: %s has no lhs parent tensor", o.Kind)
	}
	set.Add(o.Lhs.Parent)
	return nil
}

// GetInputs inserts every tensor this operation reads into set: whatever
// the rhs expression reads, plus (for every kind but SET) the lhs parent
// itself, since SUM/SUBTRACT/MULTIPLY are read-modify-write.
func (o *Operation) GetInputs(set *tensor.Set) error {
	switch o.Kind {
	case None:
		return nil
	case Set:
		o.Rhs.GetInputs(set)
		return nil
	case Sum, Subtract, Multiply:
		o.Rhs.GetInputs(set)
		if o.Lhs == nil || o.Lhs.Parent == nil {
			return errors.Errorf("op: %s has no lhs parent tensor", o.Kind)
		}
		set.Add(o.Lhs.Parent)
		return nil
	default:
		fatalf("op: GetInputs: unexpected kind %v", o.Kind)
		return nil
	}
}

// EstimateCost returns the memoised, strictly positive cost estimate for
// this operation. It is a programming error for the underlying
// expression to report a non-positive cost.
func (o *Operation) EstimateCost() int64 {
	o.costOnce.Do(func() {
		if o.Rhs == nil || o.Lhs == nil {
			fatalf("op: EstimateCost called on dummy/incomplete operation")
		}
		o.cachedCost = o.Rhs.EstimateCost(o.Lhs.Parent)
		if o.cachedCost <= 0 {
			fatalf("op: %s estimate_cost returned non-positive value %d", o.Kind, o.cachedCost)
		}
	})
	return o.cachedCost
}

// Execute applies the operation, optionally through a tensor remap.
// recording reports whether a schedule is currently in recording mode;
// executing while one is active is a programming error, since results would
// otherwise be applied outside the wavefront the scheduler controls.
func (o *Operation) Execute(remap map[tensor.ID]tensor.Tensor, recording bool) error {
	if recording {
		fatalf("op: Execute called while a schedule is recording")
	}

	lhs := o.Lhs
	rhs := o.Rhs
	if remap != nil && lhs != nil {
		lhs = lhs.Clone(remap)
	}
	if remap != nil && rhs != nil {
		rhs = rhs.Clone(remap)
	}

	switch o.Kind {
	case None:
		return nil
	case Set:
		return o.assign(lhs, rhs, 1, 0)
	case Sum:
		return o.assign(lhs, rhs, 1, 1)
	case Subtract:
		return o.assign(lhs, rhs, -1, 1)
	case Multiply:
		return o.executeMultiply(lhs, rhs)
	default:
		fatalf("op: Execute: unexpected kind %v", o.Kind)
		return nil
	}
}

// assign evaluates rhs and writes alpha*rhs + beta*lhs into lhs's parent,
// covering SET (alpha=1, beta=0), SUM (alpha=1, beta=1) and SUBTRACT
// (alpha=-1, beta=1).
func (o *Operation) assign(lhs *expr.IndexedTensor, rhs expr.Term, alpha, beta float64) error {
	if lhs == nil || lhs.Parent == nil {
		return errors.Errorf("op: %s has no lhs parent tensor", o.Kind)
	}
	val, err := rhs.Eval()
	if err != nil {
		return errors.Wrapf(err, "op: %s: evaluating rhs", o.Kind)
	}
	return lhs.Parent.AddFromSubworld(val, alpha, beta)
}

// executeMultiply evaluates rhs and folds it into lhs in place via
// lhs.Parent *= rhs, reading lhs's existing value rather than discarding
// it, since lhs.Parent is also one of this operation's declared inputs.
func (o *Operation) executeMultiply(lhs *expr.IndexedTensor, rhs expr.Term) error {
	if lhs == nil || lhs.Parent == nil {
		return errors.Errorf("op: %s has no lhs parent tensor", o.Kind)
	}
	val, err := rhs.Eval()
	if err != nil {
		return errors.Wrap(err, "op: MULTIPLY: evaluating rhs")
	}
	multiplier, ok := lhs.Parent.(tensor.ElementMultiplier)
	if !ok {
		return errors.Errorf("op: MULTIPLY: %T does not support in-place elementwise multiply", lhs.Parent)
	}
	return multiplier.MulElem(val)
}
