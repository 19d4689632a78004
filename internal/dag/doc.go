// Package dag implements the deferred-execution dependency scheduler: the
// read/write dependency graph builder, the wavefront scheduler that drains
// it, the cost-driven sub-communicator partitioner, the sub-world
// orchestrator that carries out each wave, and the process-wide recording
// sink that couples them.
//
// A Schedule is built on one rank at a time: record an identical sequence
// of operations on every rank of a comm.World (mirroring what every MPI
// process would do running the same program), then call Execute on every
// rank concurrently. The World's collectives are what keep the ranks in
// lockstep; nothing in this package talks across ranks except through it.
package dag
