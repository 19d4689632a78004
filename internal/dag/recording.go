package dag

import (
	"sync"

	"github.com/coretensor/tensorsched/internal/expr"
	"github.com/coretensor/tensorsched/internal/op"
)

// globalMu guards globalSchedule, the process-wide recording sink. It is
// a single-writer construct: concurrent recording from multiple schedules
// is unsupported, matching a known limitation rather than adding locking
// semantics the original never had.
var (
	globalMu       sync.Mutex
	globalSchedule *Schedule
)

func setGlobalSchedule(s *Schedule) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSchedule = s
}

func clearGlobalSchedule(expect *Schedule) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSchedule == expect {
		globalSchedule = nil
	}
}

// Recording reports whether some Schedule currently holds the process-wide
// recording sink. Expression-evaluation code that wants to divert an
// assignment into AddOperation instead of executing it eagerly should
// consult this (and Active) before evaluating.
func Recording() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalSchedule != nil
}

// Active returns the schedule currently recording, or nil if none is.
func Active() *Schedule {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalSchedule
}

// Assign is the diversion point expression-evaluation code should go
// through for an assignment instead of choosing itself between recording
// and eager execution: while a Schedule is recording, the assignment is
// captured via AddOperation; otherwise it runs immediately against the
// live tensors.
func Assign(kind op.Kind, lhs *expr.IndexedTensor, rhs expr.Term, name string) error {
	o := op.New(kind, lhs, rhs, name)
	if s := Active(); s != nil {
		return s.AddOperation(o)
	}
	return o.Execute(nil, false)
}
