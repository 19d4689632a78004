package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coretensor/tensorsched/internal/tensor"
)

func TestLeaf_GetInputsAndCost(t *testing.T) {
	b := tensor.NewDenseFrom(2, 2, []float64{1, 2, 3, 4})
	leaf := &Leaf{T: b}

	set := tensor.NewSet()
	leaf.GetInputs(set)
	require.True(t, set.Contains(b.TID()))
	require.EqualValues(t, 4, leaf.EstimateCost(b))
}

func TestSum_EvalAndClone(t *testing.T) {
	a := tensor.NewDenseFrom(1, 2, []float64{1, 2})
	b := tensor.NewDenseFrom(1, 2, []float64{10, 20})
	sum := &Sum{A: &Leaf{T: a}, B: &Leaf{T: b}}

	out, err := sum.Eval()
	require.NoError(t, err)
	require.Equal(t, 11.0, out.Matrix().At(0, 0))
	require.Equal(t, 22.0, out.Matrix().At(0, 1))

	replacement := tensor.NewDenseFrom(1, 2, []float64{100, 200})
	remap := map[tensor.ID]tensor.Tensor{a.TID(): replacement}
	cloned := sum.Clone(remap).(*Sum)
	clonedOut, err := cloned.Eval()
	require.NoError(t, err)
	require.Equal(t, 110.0, clonedOut.Matrix().At(0, 0))
}

func TestContract_EvalMatMul(t *testing.T) {
	a := tensor.NewDenseFrom(2, 2, []float64{1, 0, 0, 1})
	b := tensor.NewDenseFrom(2, 2, []float64{5, 6, 7, 8})
	c := &Contract{A: &Leaf{T: a}, B: &Leaf{T: b}}

	out, err := c.Eval()
	require.NoError(t, err)
	require.Equal(t, 5.0, out.Matrix().At(0, 0))
	require.Equal(t, 8.0, out.Matrix().At(1, 1))

	require.Greater(t, c.EstimateCost(b), int64(0))
}
