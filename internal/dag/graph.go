package dag

import (
	"github.com/pkg/errors"

	"github.com/coretensor/tensorsched/internal/comm"
	"github.com/coretensor/tensorsched/internal/op"
	"github.com/coretensor/tensorsched/internal/telemetry"
	"github.com/coretensor/tensorsched/internal/tensor"
)

// Schedule is one rank's view of a recorded batch of tensor assignments
// and, after Execute, the live wavefront scheduler state for draining
// them. Each rank in a comm.World owns its own Schedule, built by
// recording the identical operation sequence every other rank records;
// nothing inside Schedule is safe to share across ranks.
type Schedule struct {
	world      comm.World
	partitions int

	steps []*op.Operation // steps_original
	roots []*op.Operation // root_tasks

	readyQueue  []*op.Operation
	latestWrite map[tensor.ID]*op.Operation

	trace *telemetry.WaveTrace
}

// New returns an empty schedule bound to world, capping concurrent tasks
// per wave at partitions (0 means unbounded, i.e. min(size, |ready|)).
func New(world comm.World, partitions int) *Schedule {
	return &Schedule{
		world:       world,
		partitions:  partitions,
		latestWrite: make(map[tensor.ID]*op.Operation),
	}
}

// Record installs this schedule as the process-wide recording sink.
func (s *Schedule) Record() {
	setGlobalSchedule(s)
}

// AddOperation narrows the runtime-typed entry to the typed Operation form
// and wires it into the dependency graph. A mismatched dynamic type is a
// programming error.
func (s *Schedule) AddOperation(o op.Runtime) error {
	typed, ok := o.(*op.Operation)
	if !ok {
		fatalf("dag: AddOperation: operation has unexpected dynamic type %T", o)
	}
	return s.addOperation(typed)
}

func (s *Schedule) addOperation(o *op.Operation) error {
	inputs := tensor.NewSet()
	if err := o.GetInputs(inputs); err != nil {
		return errors.Wrap(err, "dag: add_operation: get_inputs")
	}
	outputID, err := o.Outputs()
	if err != nil {
		return errors.Wrap(err, "dag: add_operation: get_outputs")
	}

	// Read-after-write edges: wire op behind the latest writer of each
	// input, synthesizing a dummy NONE anchor the first time a tensor is
	// read without a prior write.
	for _, t := range inputs.Ordered() {
		w, ok := s.latestWrite[t.TID()]
		if !ok {
			w = op.NewRoot()
			s.latestWrite[t.TID()] = w
			s.roots = append(s.roots, w)
			s.steps = append(s.steps, w)
		}
		w.Successors = append(w.Successors, o)
		w.Reads = append(w.Reads, o)
		o.DependencyCount++
	}

	// Write-after-read edges: the new write must not run before any
	// pending reader of the tensor it clobbers.
	if prevWriter, ok := s.latestWrite[outputID]; ok {
		for _, r := range prevWriter.Reads {
			if r == o {
				continue
			}
			r.Successors = append(r.Successors, o)
			o.DependencyCount++
		}
	}

	s.latestWrite[outputID] = o
	s.steps = append(s.steps, o)
	return nil
}
