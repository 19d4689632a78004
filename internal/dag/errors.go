package dag

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// FatalError marks a programming error inside the dependency graph builder
// or scheduler: a mismatched dynamic type at AddOperation, or a partitioner
// invariant violation that should be structurally impossible given a
// non-empty ready queue. Thrown via exceptions.Throw rather than returned:
// these conditions are always bugs, never recoverable input errors.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

func fatalf(format string, args ...any) {
	exceptions.Throw(&FatalError{Msg: fmt.Sprintf(format, args...)})
}
