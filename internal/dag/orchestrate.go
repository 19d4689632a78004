package dag

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/telemetry"
	"github.com/coretensor/tensorsched/internal/tensor"
	"github.com/coretensor/tensorsched/internal/timing"
)

// partitionAndExecute runs one wave to completion: partition the ready
// queue, split the parent world into per-colour sub-worlds, migrate inputs
// down, execute this rank's assigned task, measure imbalance, migrate
// outputs up, tear down, and release newly-ready successors. It mutates
// s.readyQueue and accumulates into timer.
func (s *Schedule) partitionAndExecute(ctx context.Context, timer *timing.ScheduleTimer) error {
	waveStart := time.Now()
	defer func() {
		timer.TotalTime += time.Since(waveStart)
	}()

	pr := s.partitionWindow()
	if pr.numTasks == 0 {
		fatalf("dag: partition_and_execute: no balanceable window over a non-empty ready queue")
	}

	// Copy the window out before mutating s.readyQueue: the repeated
	// erase below shifts elements of the very same backing array.
	window := make([]*op.Operation, pr.numTasks)
	copy(window, s.readyQueue[pr.startingTask:pr.startingTask+pr.numTasks])

	rank := int(s.world.Rank())
	myColor := colorForRank(rank, s.world.Size(), window, pr.sumCost)

	s.logWave(pr, s.readyQueue)

	// Step 1: split the parent communicator by colour.
	subWorld, err := s.world.Split(ctx, myColor, rank)
	if err != nil {
		return errors.Wrap(err, "dag: split")
	}

	// Steps 2+4: package each colour's tensors and migrate them down. Every
	// rank calls add_to_subworld for every colour's tensors, collective on
	// the parent; only the rank(s) whose colour matches idx get a non-nil
	// local clone.
	commDownStart := time.Now()
	remaps := make([]map[tensor.ID]tensor.Tensor, len(window))
	for idx, taskOp := range window {
		participating := idx == myColor

		all := tensor.NewSet()
		if err := taskOp.GetInputs(all); err != nil {
			return errors.Wrapf(err, "dag: migrate down: task %d get_inputs", idx)
		}
		outputs := tensor.NewSet()
		if err := taskOp.GetOutputs(outputs); err != nil {
			return errors.Wrapf(err, "dag: migrate down: task %d get_outputs", idx)
		}
		for _, t := range outputs.Ordered() {
			all.Add(t)
		}

		remap := make(map[tensor.ID]tensor.Tensor, all.Len())
		for _, t := range all.Ordered() {
			var local tensor.Tensor
			if participating {
				local = t.CloneOnto(subWorld)
				remap[t.TID()] = local
			}
			if err := t.AddToSubworld(local, 1, 0); err != nil {
				return errors.Wrapf(err, "dag: migrate down: task %d tensor %d", idx, t.TID())
			}
		}
		remaps[idx] = remap
	}
	timer.CommDownTime += time.Since(commDownStart)

	// Step 5: barrier, then every rank executes the one task its colour
	// owns.
	if err := s.world.Barrier(ctx); err != nil {
		return errors.Wrap(err, "dag: barrier before execute")
	}
	execStart := time.Now()
	myTask := window[myColor]
	if err := myTask.Execute(remaps[myColor], Recording()); err != nil {
		return errors.Wrapf(err, "dag: executing %s", myTask.Name())
	}
	execTime := time.Since(execStart)
	timer.ExecTime += execTime

	// Step 6: measure per-rank imbalance across the parent world.
	minSeconds, err := s.world.AllreduceMin(ctx, execTime.Seconds())
	if err != nil {
		return errors.Wrap(err, "dag: allreduce min exec time")
	}
	maxSeconds, err := s.world.AllreduceMax(ctx, execTime.Seconds())
	if err != nil {
		return errors.Wrap(err, "dag: allreduce max exec time")
	}
	accumSeconds, err := s.world.AllreduceSum(ctx, execTime.Seconds()-minSeconds)
	if err != nil {
		return errors.Wrap(err, "dag: allreduce accum imbalance")
	}
	wallImbalance := time.Duration((maxSeconds - minSeconds) * float64(time.Second))
	accumImbalance := time.Duration(accumSeconds * float64(time.Second))
	timer.ImbalanceWallTime += wallImbalance
	timer.ImbalanceAccumTime += accumImbalance
	s.logImbalance(wallImbalance, accumImbalance)

	// Step 7: migrate outputs back up.
	commUpStart := time.Now()
	for idx, taskOp := range window {
		outputs := tensor.NewSet()
		if err := taskOp.GetOutputs(outputs); err != nil {
			return errors.Wrapf(err, "dag: migrate up: task %d get_outputs", idx)
		}
		for _, t := range outputs.Ordered() {
			// Every rank in this colour's sub-world computed the identical
			// local result; only the sub-world's own rank 0 feeds it back
			// into the shared global tensor, the same way a single
			// representative would flush a replicated result in a real
			// reduce instead of every replica racing to write it.
			var local tensor.Tensor
			if idx == myColor && subWorld.Rank() == 0 {
				local = remaps[idx][t.TID()]
			}
			if err := t.AddFromSubworld(local, 1, 0); err != nil {
				return errors.Wrapf(err, "dag: migrate up: task %d tensor %d", idx, t.TID())
			}
		}
	}
	timer.CommUpTime += time.Since(commUpStart)

	// Step 8: teardown. The sub-world and its local tensor clones are only
	// referenced through subWorld/remaps, both local to this call; they
	// become garbage once partitionAndExecute returns.

	// Step 3: remove the chosen tasks from ready_queue via repeated erase
	// at the same index.
	for i := 0; i < pr.numTasks; i++ {
		s.readyQueue = append(s.readyQueue[:pr.startingTask], s.readyQueue[pr.startingTask+1:]...)
	}

	// Step 9: release successors of every executed task.
	for _, taskOp := range window {
		s.readyQueue = release(s.readyQueue, taskOp)
	}

	return nil
}

func (s *Schedule) logWave(pr partitionResult, queue []*op.Operation) {
	if s.trace == nil {
		return
	}
	ready := make([]telemetry.TaskCost, len(queue))
	for i, o := range queue {
		ready[i] = telemetry.TaskCost{Name: o.Name(), Cost: o.EstimateCost()}
	}
	s.trace.Record(telemetry.WaveEvent{
		MaxColors:    pr.maxColors,
		StartingTask: pr.startingTask,
		NumTasks:     pr.numTasks,
		ReadyQueue:   ready,
	})
}

func (s *Schedule) logImbalance(wall, accum time.Duration) {
	if s.trace == nil || len(s.trace.Events) == 0 {
		return
	}
	last := &s.trace.Events[len(s.trace.Events)-1]
	last.ImbalanceWallSeconds = wall.Seconds()
	last.ImbalanceAccumSeconds = accum.Seconds()
}
