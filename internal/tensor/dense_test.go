package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coretensor/tensorsched/internal/comm"
)

func TestDense_CloneOnto_ZeroedSameShape(t *testing.T) {
	worlds := NewLocalWorldOne()
	src := NewDenseFrom(2, 2, []float64{1, 2, 3, 4})

	clone := src.CloneOnto(worlds[0])
	cd := clone.(*Dense)

	rows, cols := cd.Shape()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	require.NotEqual(t, src.TID(), cd.TID())
	require.Equal(t, 0.0, cd.Matrix().At(0, 0))
}

func TestDense_AddToSubworld_And_AddFromSubworld_RoundTrip(t *testing.T) {
	global := NewDenseFrom(1, 3, []float64{10, 20, 30})
	local := NewDense(1, 3)

	require.NoError(t, global.AddToSubworld(local, 1, 0))
	require.Equal(t, 10.0, local.Matrix().At(0, 0))
	require.Equal(t, 30.0, local.Matrix().At(0, 2))

	// Simulate local compute: local += 1 on every element.
	for j := 0; j < 3; j++ {
		local.Matrix().Set(0, j, local.Matrix().At(0, j)+1)
	}

	require.NoError(t, global.AddFromSubworld(local, 1, 0))
	require.Equal(t, 11.0, global.Matrix().At(0, 0))
	require.Equal(t, 31.0, global.Matrix().At(0, 2))
}

func TestDense_AddToSubworld_ShapeMismatch(t *testing.T) {
	global := NewDenseFrom(1, 3, []float64{1, 2, 3})
	local := NewDense(2, 2)
	err := global.AddToSubworld(local, 1, 0)
	require.Error(t, err)
}

func NewLocalWorldOne() []comm.World {
	return comm.NewLocalWorld(1)
}
