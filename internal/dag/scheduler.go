package dag

import (
	"context"

	"github.com/pkg/errors"

	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/telemetry"
	"github.com/coretensor/tensorsched/internal/timing"
)

// SetTrace installs t to receive one WaveEvent per wave. Callers typically
// only set it on rank 0 (recording the wave trace is a rank-0
// responsibility, not a collective one), but setting it on every rank is
// harmless since recording an event never touches the World.
func (s *Schedule) SetTrace(t *telemetry.WaveTrace) {
	s.trace = t
}

// Execute drains the dependency graph wave by wave. It clears the
// process-wide recording sink on entry, resets every operation's
// dependency_left counter, seeds the ready queue from the root tasks, and
// pre-drains the dummy NONE anchors before entering the main
// partition-execute loop.
func (s *Schedule) Execute(ctx context.Context) (timing.ScheduleTimer, error) {
	clearGlobalSchedule(s)

	var timer timing.ScheduleTimer

	for _, o := range s.steps {
		o.DependencyLeft = o.DependencyCount
	}
	s.readyQueue = append(s.readyQueue[:0], s.roots...)
	s.readyQueue = drainDummies(s.readyQueue)

	for len(s.readyQueue) > 0 {
		if err := s.partitionAndExecute(ctx, &timer); err != nil {
			return timer, errors.Wrap(err, "dag: execute")
		}
	}
	return timer, nil
}

// drainDummies pops NONE operations from the front of queue until the
// front is non-dummy, releasing each popped dummy's successors as it
// goes. Root tasks are always dummies (only synthesized anchors are ever
// appended to roots), so this is what turns the initial all-dummy seed
// queue into the schedule's first real wavefront.
func drainDummies(queue []*op.Operation) []*op.Operation {
	for len(queue) > 0 && queue[0].IsDummy() {
		dummy := queue[0]
		queue = queue[1:]
		queue = release(queue, dummy)
	}
	return queue
}

// release decrements every successor of o and enqueues those that reach
// zero, the bookkeeping shared by the pre-drain and by step 9 of the
// sub-world orchestrator.
func release(queue []*op.Operation, o *op.Operation) []*op.Operation {
	for _, succ := range o.Successors {
		succ.DependencyLeft--
		if succ.DependencyLeft == 0 {
			queue = append(queue, succ)
		}
	}
	return queue
}
