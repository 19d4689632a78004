package dag

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coretensor/tensorsched/internal/comm"
	"github.com/coretensor/tensorsched/internal/expr"
	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/tensor"
	"github.com/coretensor/tensorsched/internal/timing"
)

// runOnAllRanks builds a fresh Schedule per rank (mirroring every MPI
// process independently recording the identical operation sequence) via
// build, then executes all ranks concurrently and returns every rank's
// timer/error.
func runOnAllRanks(t *testing.T, worlds []comm.World, partitions int, build func(s *Schedule)) ([]timing.ScheduleTimer, []error) {
	t.Helper()
	n := len(worlds)
	timers := make([]timing.ScheduleTimer, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			s := New(worlds[r], partitions)
			build(s)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			timer, err := s.Execute(ctx)
			timers[r] = timer
			errs[r] = err
		}(r)
	}
	wg.Wait()
	return timers, errs
}

func requireAllNoError(t *testing.T, errs []error) {
	t.Helper()
	for i, err := range errs {
		require.NoErrorf(t, err, "rank %d", i)
	}
}

func TestSchedule_SingleSet(t *testing.T) {
	// scenario 1.
	worlds := comm.NewLocalWorld(4)
	b := tensor.NewDenseFrom(1, 1, []float64{42})
	a := tensor.NewDense(1, 1)

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		o := op.New(op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A=B")
		require.NoError(t, s.AddOperation(o))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 42.0, a.Matrix().At(0, 0))
}

func TestSchedule_IndependentPair(t *testing.T) {
	// scenario 2: both operations cost 100 (10x10 tensors), so
	// the proportional colour sampling actually splits ranks {0,1} and
	// {2,3} across the two tasks instead of degenerating to one colour
	// the way unit-cost tensors would (integer strip width underflows to
	// zero for costs far smaller than comm_size).
	worlds := comm.NewLocalWorld(4)
	bData := make([]float64, 100)
	for i := range bData {
		bData[i] = 1
	}
	dData := make([]float64, 100)
	for i := range dData {
		dData[i] = 2
	}
	b := tensor.NewDenseFrom(10, 10, bData)
	d := tensor.NewDenseFrom(10, 10, dData)
	a := tensor.NewDense(10, 10)
	c := tensor.NewDense(10, 10)

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		o1 := op.New(op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A=B")
		o2 := op.New(op.Set, &expr.IndexedTensor{Parent: c}, &expr.Leaf{T: d}, "C=D")
		require.NoError(t, s.AddOperation(o1))
		require.NoError(t, s.AddOperation(o2))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 1.0, a.Matrix().At(0, 0))
	require.Equal(t, 2.0, c.Matrix().At(0, 0))
}

func TestSchedule_ReadAfterWrite(t *testing.T) {
	// scenario 3.
	worlds := comm.NewLocalWorld(4)
	b := tensor.NewDenseFrom(1, 1, []float64{10})
	a := tensor.NewDense(1, 1)
	c := tensor.NewDenseFrom(1, 1, []float64{5})

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		setA := op.New(op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A=B")
		sumC := op.New(op.Sum, &expr.IndexedTensor{Parent: c}, &expr.Leaf{T: a}, "C+=A")
		require.NoError(t, s.AddOperation(setA))
		require.NoError(t, s.AddOperation(sumC))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 10.0, a.Matrix().At(0, 0))
	require.Equal(t, 15.0, c.Matrix().At(0, 0))
}

func TestSchedule_MultiplyAndSubtractChain(t *testing.T) {
	worlds := comm.NewLocalWorld(4)
	b := tensor.NewDenseFrom(1, 1, []float64{5})
	a := tensor.NewDenseFrom(1, 1, []float64{4})
	c := tensor.NewDenseFrom(1, 1, []float64{30})

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		mulA := op.New(op.Multiply, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A*=B")
		subC := op.New(op.Subtract, &expr.IndexedTensor{Parent: c}, &expr.Leaf{T: a}, "C-=A")
		require.NoError(t, s.AddOperation(mulA))
		require.NoError(t, s.AddOperation(subC))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 20.0, a.Matrix().At(0, 0), "A*=B must fold A's prior value in, not overwrite it")
	require.Equal(t, 10.0, c.Matrix().At(0, 0))
}

func TestSchedule_WriteAfterRead(t *testing.T) {
	// scenario 4.
	worlds := comm.NewLocalWorld(2)
	a := tensor.NewDenseFrom(1, 1, []float64{1})
	b := tensor.NewDenseFrom(1, 1, []float64{99})
	c := tensor.NewDense(1, 1)
	d := tensor.NewDense(1, 1)

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		readC := op.New(op.Set, &expr.IndexedTensor{Parent: c}, &expr.Leaf{T: a}, "C=A")
		readD := op.New(op.Set, &expr.IndexedTensor{Parent: d}, &expr.Leaf{T: a}, "D=A")
		rewriteA := op.New(op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A=B")
		require.NoError(t, s.AddOperation(readC))
		require.NoError(t, s.AddOperation(readD))
		require.NoError(t, s.AddOperation(rewriteA))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 1.0, c.Matrix().At(0, 0), "C must see A's value before the rewrite")
	require.Equal(t, 1.0, d.Matrix().At(0, 0), "D must see A's value before the rewrite")
	require.Equal(t, 99.0, a.Matrix().At(0, 0))
}

func TestSchedule_ChainDAGDegeneratesToSerial(t *testing.T) {
	worlds := comm.NewLocalWorld(3)
	seed := tensor.NewDenseFrom(1, 1, []float64{1})
	mid := tensor.NewDense(1, 1)
	end := tensor.NewDense(1, 1)

	_, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {
		step1 := op.New(op.Set, &expr.IndexedTensor{Parent: mid}, &expr.Leaf{T: seed}, "mid=seed")
		step2 := op.New(op.Set, &expr.IndexedTensor{Parent: end}, &expr.Leaf{T: mid}, "end=mid")
		require.NoError(t, s.AddOperation(step1))
		require.NoError(t, s.AddOperation(step2))
	})

	requireAllNoError(t, errs)
	require.Equal(t, 1.0, end.Matrix().At(0, 0))
}

func TestSchedule_EmptyScheduleReturnsZeroTimer(t *testing.T) {
	worlds := comm.NewLocalWorld(1)
	timers, errs := runOnAllRanks(t, worlds, 0, func(s *Schedule) {})
	requireAllNoError(t, errs)
	require.Equal(t, timing.ScheduleTimer{}, timers[0])
}
