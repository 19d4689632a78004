package dag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coretensor/tensorsched/internal/comm"
	"github.com/coretensor/tensorsched/internal/expr"
	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/tensor"
)

func opWithCost(cost int, name string) *op.Operation {
	b := tensor.NewDenseFrom(1, cost, make([]float64, cost))
	a := tensor.NewDense(1, cost)
	return op.New(op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, name)
}

func TestPartitionWindow_ImbalanceGateTrips(t *testing.T) {
	// scenario 5: costs {100, 100, 1} on size=4.
	s := New(comm.NewLocalWorld(4)[0], 0)
	s.readyQueue = []*op.Operation{opWithCost(100, "a"), opWithCost(1, "c"), opWithCost(100, "b")}

	pr := s.partitionWindow()
	require.Equal(t, 0, pr.startingTask)
	require.Equal(t, 2, pr.numTasks)
	require.Equal(t, int64(200), pr.sumCost)
}

func TestPartitionWindow_EqualCostsTakeWholeCap(t *testing.T) {
	s := New(comm.NewLocalWorld(4)[0], 0)
	s.readyQueue = []*op.Operation{opWithCost(50, "a"), opWithCost(50, "b"), opWithCost(50, "c"), opWithCost(50, "d")}

	pr := s.partitionWindow()
	require.Equal(t, 4, pr.numTasks)
	require.Equal(t, int64(200), pr.sumCost)
}

func TestPartitionWindow_PartitionsCapLimitsColorCount(t *testing.T) {
	s := New(comm.NewLocalWorld(4)[0], 2)
	s.readyQueue = []*op.Operation{opWithCost(50, "a"), opWithCost(50, "b"), opWithCost(50, "c"), opWithCost(50, "d")}

	pr := s.partitionWindow()
	require.Equal(t, 2, pr.numTasks)
}

func TestColorForRank_ProportionalToTaskCost(t *testing.T) {
	// scenario 6: costs {300, 100} on size=4.
	window := []*op.Operation{opWithCost(300, "big"), opWithCost(100, "small")}
	sumCost := int64(400)

	require.Equal(t, 0, colorForRank(0, 4, window, sumCost))
	require.Equal(t, 0, colorForRank(1, 4, window, sumCost))
	require.Equal(t, 0, colorForRank(2, 4, window, sumCost))
	require.Equal(t, 1, colorForRank(3, 4, window, sumCost))
}

func TestColorForRank_SingleTaskAlwaysColorZero(t *testing.T) {
	window := []*op.Operation{opWithCost(100, "only")}
	for rank := 0; rank < 4; rank++ {
		require.Equal(t, 0, colorForRank(rank, 4, window, 100))
	}
}
