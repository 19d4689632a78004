package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/coretensor/tensorsched/internal/comm"
	"github.com/coretensor/tensorsched/internal/dag"
	"github.com/coretensor/tensorsched/internal/expr"
	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/telemetry"
	"github.com/coretensor/tensorsched/internal/tensor"
)

func newRootCmd() *cobra.Command {
	var ranks int
	var partitions int
	var development bool

	cmd := &cobra.Command{
		Use:   "tensorsched",
		Short: "Record and execute a demonstration tensor-assignment schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), ranks, partitions, development)
		},
	}

	cmd.Flags().IntVar(&ranks, "ranks", 4, "number of simulated MPI ranks")
	cmd.Flags().IntVar(&partitions, "partitions", 0, "max concurrent tasks per wave (0 = unbounded)")
	cmd.Flags().BoolVar(&development, "dev", false, "use human-readable console logging instead of JSON")

	return cmd
}

// runDemo records a small script exercising every dependency shape the
// scheduler cares about (independent writes, a read-after-write, and a
// write-after-read) and executes it across ranks simulated ranks, printing
// one wave-trace line per wave from rank 0.
func runDemo(ctx context.Context, ranks, partitions int, development bool) error {
	logger, err := telemetry.NewLogger(development)
	if err != nil {
		return fmt.Errorf("tensorsched: building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	runID := uuid.New().String()
	logger.Infow("recording schedule", "run_id", runID, "ranks", ranks, "partitions", partitions)

	b := tensor.NewDenseFrom(4, 4, rampData(16, 1))
	d := tensor.NewDenseFrom(4, 4, rampData(16, 2))
	a := tensor.NewDense(4, 4)
	c := tensor.NewDense(4, 4)
	e := tensor.NewDense(4, 4)

	worlds := comm.NewLocalWorld(ranks)
	trace := telemetry.NewWaveTrace(runID)

	var wg sync.WaitGroup
	errs := make([]error, ranks)
	wg.Add(ranks)
	for r := 0; r < ranks; r++ {
		go func(r int) {
			defer wg.Done()
			sched := dag.New(worlds[r], partitions)
			if r == 0 {
				sched.SetTrace(trace)
			}

			assignments := []struct {
				kind op.Kind
				lhs  *expr.IndexedTensor
				rhs  expr.Term
				name string
			}{
				{op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: b}, "A=B"},
				{op.Set, &expr.IndexedTensor{Parent: c}, &expr.Leaf{T: d}, "C=D"},
				{op.Sum, &expr.IndexedTensor{Parent: e}, &expr.Leaf{T: a}, "E+=A"},
				{op.Set, &expr.IndexedTensor{Parent: a}, &expr.Leaf{T: d}, "A=D"},
			}
			for _, as := range assignments {
				if err := sched.AddOperation(op.New(as.kind, as.lhs, as.rhs, as.name)); err != nil {
					errs[r] = err
					return
				}
			}

			timer, err := sched.Execute(ctx)
			if err != nil {
				errs[r] = err
				return
			}
			if r == 0 {
				trace.Log(logger)
				logger.Infow("done",
					"run_id", runID,
					"exec_time", timer.ExecTime,
					"comm_down_time", timer.CommDownTime,
					"comm_up_time", timer.CommUpTime,
					"imbalance_wall_time", timer.ImbalanceWallTime,
					"imbalance_accum_time", timer.ImbalanceAccumTime,
					"tensor_elements", humanize.Comma(int64(a.Elements()+c.Elements()+e.Elements())),
				)
			}
		}(r)
	}

	bar := progressbar.Default(-1, "scheduling")
	wg.Wait()
	_ = bar.Finish()

	for r, err := range errs {
		if err != nil {
			return fmt.Errorf("tensorsched: rank %d: %w", r, err)
		}
	}

	logger.Infow("final tensor state", "e", e.Matrix().At(0, 0))
	return nil
}

func rampData(n int, seed float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = seed + float64(i)
	}
	return out
}
