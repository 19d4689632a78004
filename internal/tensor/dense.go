package tensor

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/coretensor/tensorsched/internal/comm"
)

var nextID atomic.Int64

// NextID returns a fresh, process-unique tensor ID. In a real distributed
// tensor engine IDs would be assigned at tensor-creation time the same way
// on every rank (e.g. a monotonic counter seeded identically everywhere);
// this reference backend runs every rank in the same address space and
// every rank shares the same *Dense for a logical tensor, so a single
// atomic counter gives all ranks the identity its creator was given, which
// is all tid-ordering needs. Clones made by CloneOnto get fresh IDs.
func NextID() ID { return ID(nextID.Add(1)) }

// Dense is a reference Tensor backed by a gonum dense matrix. It exists to
// let the scheduler be recorded against and executed end to end without a
// real distributed tensor backend; it does not model actual distributed
// storage, sparsity, or redistribution cost.
type Dense struct {
	id   ID
	rows int
	cols int
	m    *mat.Dense
}

// NewDense creates a Dense tensor with the given shape, zero-initialized.
func NewDense(rows, cols int) *Dense {
	return &Dense{id: NextID(), rows: rows, cols: cols, m: mat.NewDense(rows, cols, nil)}
}

// NewDenseFrom creates a Dense tensor from existing row-major data.
func NewDenseFrom(rows, cols int, data []float64) *Dense {
	return &Dense{id: NextID(), rows: rows, cols: cols, m: mat.NewDense(rows, cols, data)}
}

func (d *Dense) TID() ID            { return d.id }
func (d *Dense) Shape() (int, int)  { return d.rows, d.cols }
func (d *Dense) Matrix() *mat.Dense { return d.m }
func (d *Dense) Elements() int      { return d.rows * d.cols }

// CloneOnto creates a zero-valued tensor with the same shape, bound to a
// different (sub-)world. The world argument is accepted to satisfy the
// Tensor contract's "target_world" clone constructor; this reference
// backend keeps all ranks in one address space so it does not need to
// retain the world handle to move data later.
func (d *Dense) CloneOnto(w comm.World) Tensor {
	_ = w
	return NewDense(d.rows, d.cols)
}

// AddToSubworld computes local := alpha*d + beta*local, the redistribution
// primitive that scatters a parent-world tensor's data into a
// sub-world's local copy.
func (d *Dense) AddToSubworld(local Tensor, alpha, beta float64) error {
	if local == nil {
		return nil
	}
	ld, ok := local.(*Dense)
	if !ok {
		return errors.Errorf("tensor: AddToSubworld: local is not a *Dense (%T)", local)
	}
	return axpby(ld.m, d.m, alpha, beta)
}

// AddFromSubworld computes d := alpha*local + beta*d, the redistribution
// primitive that gathers a sub-world's local result back into the
// parent-world tensor.
func (d *Dense) AddFromSubworld(local Tensor, alpha, beta float64) error {
	if local == nil {
		return nil
	}
	ld, ok := local.(*Dense)
	if !ok {
		return errors.Errorf("tensor: AddFromSubworld: local is not a *Dense (%T)", local)
	}
	return axpby(d.m, ld.m, alpha, beta)
}

// MulElem computes d := d .* other elementwise, in place. Shapes must
// match exactly; there is no broadcasting.
func (d *Dense) MulElem(other Tensor) error {
	od, ok := other.(*Dense)
	if !ok {
		return errors.Errorf("tensor: MulElem: other is not a *Dense (%T)", other)
	}
	dr, dc := d.m.Dims()
	or, oc := od.m.Dims()
	if dr != or || dc != oc {
		return errors.Errorf("tensor: shape mismatch in MulElem: lhs=%dx%d rhs=%dx%d", dr, dc, or, oc)
	}
	d.m.MulElem(d.m, od.m)
	return nil
}

// axpby sets dst := alpha*src + beta*dst in place.
func axpby(dst, src *mat.Dense, alpha, beta float64) error {
	dr, dc := dst.Dims()
	sr, sc := src.Dims()
	if dr != sr || dc != sc {
		return errors.Errorf("tensor: shape mismatch in redistribution: dst=%dx%d src=%dx%d", dr, dc, sr, sc)
	}
	var scaledSrc, scaledDst mat.Dense
	scaledSrc.Scale(alpha, src)
	scaledDst.Scale(beta, dst)
	dst.Add(&scaledSrc, &scaledDst)
	return nil
}
