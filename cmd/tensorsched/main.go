// Command tensorsched records and executes a small demonstration script of
// tensor assignments against the local, in-process collaborator backends,
// printing the scheduler's per-wave partitioning decisions the way rank 0
// is expected to.
package main

import (
	"fmt"
	"os"

	"github.com/gomlx/exceptions"

	"github.com/coretensor/tensorsched/internal/op"
)

func main() {
	defer exceptions.Catch(func(e *op.FatalError) {
		fmt.Fprintln(os.Stderr, "tensorsched: fatal:", e.Error())
		os.Exit(1)
	})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tensorsched:", err)
		os.Exit(1)
	}
}
