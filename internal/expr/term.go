package expr

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/coretensor/tensorsched/internal/tensor"
)

// sized is implemented by tensor backends that can report their element
// count; EstimateCost uses it opportunistically (the Tensor contract
// doesn't require it) and falls back to a flat cost of 1 for backends
// that don't.
type sized interface {
	Elements() int
}

func elementsOf(t tensor.Tensor) int64 {
	if s, ok := t.(sized); ok {
		if n := s.Elements(); n > 0 {
			return int64(n)
		}
	}
	return 1
}

// Leaf is a term that reads a single tensor verbatim.
type Leaf struct {
	T tensor.Tensor
}

func (l *Leaf) GetInputs(set *tensor.Set) { set.Add(l.T) }

func (l *Leaf) EstimateCost(lhs tensor.Tensor) int64 {
	c := elementsOf(l.T)
	if c <= 0 {
		c = 1
	}
	return c
}

func (l *Leaf) Clone(remap map[tensor.ID]tensor.Tensor) Term {
	return &Leaf{T: remapTensor(remap, l.T)}
}

func (l *Leaf) Eval() (*tensor.Dense, error) {
	d, ok := l.T.(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("expr: Leaf.Eval: tensor is not a *tensor.Dense (%T)", l.T)
	}
	rows, cols := d.Shape()
	out := tensor.NewDense(rows, cols)
	var one mat.Dense
	one.Scale(1, d.Matrix())
	out.Matrix().Copy(&one)
	return out, nil
}

// Scale is a term that multiplies an inner term by a scalar coefficient; it
// contributes no extra tensor reads and does not change the asymptotic
// cost of evaluating Inner.
type Scale struct {
	Coeff float64
	Inner Term
}

func (s *Scale) GetInputs(set *tensor.Set) { s.Inner.GetInputs(set) }

func (s *Scale) EstimateCost(lhs tensor.Tensor) int64 { return s.Inner.EstimateCost(lhs) }

func (s *Scale) Clone(remap map[tensor.ID]tensor.Tensor) Term {
	return &Scale{Coeff: s.Coeff, Inner: s.Inner.Clone(remap)}
}

func (s *Scale) Eval() (*tensor.Dense, error) {
	inner, err := s.Inner.Eval()
	if err != nil {
		return nil, err
	}
	rows, cols := inner.Shape()
	out := tensor.NewDense(rows, cols)
	out.Matrix().Scale(s.Coeff, inner.Matrix())
	return out, nil
}

// Sum is a term that adds two subterms elementwise.
type Sum struct {
	A, B Term
}

func (s *Sum) GetInputs(set *tensor.Set) {
	s.A.GetInputs(set)
	s.B.GetInputs(set)
}

func (s *Sum) EstimateCost(lhs tensor.Tensor) int64 {
	return s.A.EstimateCost(lhs) + s.B.EstimateCost(lhs) + elementsOf(lhs)
}

func (s *Sum) Clone(remap map[tensor.ID]tensor.Tensor) Term {
	return &Sum{A: s.A.Clone(remap), B: s.B.Clone(remap)}
}

func (s *Sum) Eval() (*tensor.Dense, error) {
	a, err := s.A.Eval()
	if err != nil {
		return nil, err
	}
	b, err := s.B.Eval()
	if err != nil {
		return nil, err
	}
	ar, ac := a.Shape()
	br, bc := b.Shape()
	if ar != br || ac != bc {
		return nil, errors.Errorf("expr: Sum.Eval: shape mismatch %dx%d vs %dx%d", ar, ac, br, bc)
	}
	out := tensor.NewDense(ar, ac)
	out.Matrix().Add(a.Matrix(), b.Matrix())
	return out, nil
}

// Contract is a term that contracts (e.g. multiplies) two subterms; cost
// grows with the product of the subterms' own costs, the same way a tensor
// contraction's FLOP count grows with the product of the contracted
// dimensions.
type Contract struct {
	A, B Term
}

func (c *Contract) GetInputs(set *tensor.Set) {
	c.A.GetInputs(set)
	c.B.GetInputs(set)
}

func (c *Contract) EstimateCost(lhs tensor.Tensor) int64 {
	ca := c.A.EstimateCost(lhs)
	cb := c.B.EstimateCost(lhs)
	cost := ca * cb
	if cost <= 0 {
		cost = 1
	}
	return cost
}

func (c *Contract) Clone(remap map[tensor.ID]tensor.Tensor) Term {
	return &Contract{A: c.A.Clone(remap), B: c.B.Clone(remap)}
}

func (c *Contract) Eval() (*tensor.Dense, error) {
	a, err := c.A.Eval()
	if err != nil {
		return nil, err
	}
	b, err := c.B.Eval()
	if err != nil {
		return nil, err
	}
	ar, ac := a.Shape()
	br, bc := b.Shape()
	if ac != br {
		return nil, errors.Errorf("expr: Contract.Eval: inner dimension mismatch %dx%d * %dx%d", ar, ac, br, bc)
	}
	out := tensor.NewDense(ar, bc)
	out.Matrix().Mul(a.Matrix(), b.Matrix())
	return out, nil
}
