package comm

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrTimedOut is returned by a collective that never saw every rank arrive
// before ctx was done. In a correct BSP program this never happens; it
// exists so a deadlocked test (a rank that forgot to call a collective it
// owes) fails loudly instead of hanging the test suite forever.
var ErrTimedOut = errors.New("comm: collective timed out waiting for all ranks")

// fabric is the shared state backing every LocalWorld handle produced by
// NewLocalWorld or a Split of one. Exactly one goroutine per rank is
// expected to hold a handle at a time.
type fabric struct {
	size int

	mu   sync.Mutex
	cond *sync.Cond

	// barrier
	barrierGen   int
	barrierCount int

	// allreduce (reuses the barrier machinery; scratch holds one value per rank)
	scratch []float64

	// split
	splitGen     int
	splitCount   int
	splitEntries []splitEntry
	splitResult  []World
}

type splitEntry struct {
	color, key int
	set        bool
}

func newFabric(size int) *fabric {
	f := &fabric{
		size:         size,
		scratch:      make([]float64, size),
		splitEntries: make([]splitEntry, size),
		splitResult:  make([]World, size),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// LocalWorld is an in-process World: every rank is a goroutine sharing a
// fabric, and collectives are ordinary generation-counted barriers.
type LocalWorld struct {
	f    *fabric
	rank Rank
}

// NewLocalWorld returns one World handle per rank, all belonging to the same
// communicator. Handles must be handed one-per-goroutine to callers that
// then drive them concurrently, the same way MPI hands one rank to each OS
// process.
func NewLocalWorld(size int) []World {
	if size <= 0 {
		panic("comm: NewLocalWorld requires size > 0")
	}
	f := newFabric(size)
	worlds := make([]World, size)
	for r := 0; r < size; r++ {
		worlds[r] = &LocalWorld{f: f, rank: Rank(r)}
	}
	return worlds
}

func (w *LocalWorld) Rank() Rank { return w.rank }
func (w *LocalWorld) Size() int  { return w.f.size }

// waitBarrier blocks until the fabric's barrier generation counter moves
// past startGen, or ctx is done. Caller must hold f.mu; it is
// released while waiting and re-acquired on return.
func (f *fabric) waitBarrier(ctx context.Context, startGen int) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		case <-stop:
		}
	}()
	for f.barrierGen == startGen {
		if ctx.Err() != nil {
			return ErrTimedOut
		}
		f.cond.Wait()
	}
	return nil
}

// Barrier implements World.Barrier: the arriving rank increments the
// shared counter and, if last, bumps the generation and wakes everyone.
func (w *LocalWorld) Barrier(ctx context.Context) error {
	f := w.f
	f.mu.Lock()
	defer f.mu.Unlock()

	startGen := f.barrierGen
	f.barrierCount++
	if f.barrierCount == f.size {
		f.barrierCount = 0
		f.barrierGen++
		f.cond.Broadcast()
		return nil
	}
	return f.waitBarrier(ctx, startGen)
}

func (w *LocalWorld) allreduce(ctx context.Context, v float64, combine func(a, b float64) float64) (float64, error) {
	f := w.f
	f.mu.Lock()
	f.scratch[w.rank] = v
	startGen := f.barrierGen
	f.barrierCount++
	if f.barrierCount == f.size {
		// The last arriving rank reduces while every contribution is still
		// in place and writes the result into every slot: a rank that
		// returns first may start its next collective and overwrite its own
		// slot before the waiters have woken up.
		reduced := f.scratch[0]
		for i := 1; i < f.size; i++ {
			reduced = combine(reduced, f.scratch[i])
		}
		for i := range f.scratch {
			f.scratch[i] = reduced
		}
		f.barrierCount = 0
		f.barrierGen++
		f.cond.Broadcast()
	} else {
		if err := f.waitBarrier(ctx, startGen); err != nil {
			f.mu.Unlock()
			return 0, err
		}
	}
	result := f.scratch[w.rank]
	f.mu.Unlock()
	return result, nil
}

func (w *LocalWorld) AllreduceMin(ctx context.Context, v float64) (float64, error) {
	return w.allreduce(ctx, v, func(a, b float64) float64 {
		if b < a {
			return b
		}
		return a
	})
}

func (w *LocalWorld) AllreduceMax(ctx context.Context, v float64) (float64, error) {
	return w.allreduce(ctx, v, func(a, b float64) float64 {
		if b > a {
			return b
		}
		return a
	})
}

func (w *LocalWorld) AllreduceSum(ctx context.Context, v float64) (float64, error) {
	return w.allreduce(ctx, v, func(a, b float64) float64 { return a + b })
}

// Split implements World.Split. Every rank in the parent world contributes
// its (color, key); the last arriving rank computes the color->sub-world
// assignment for everyone and wakes the waiters.
func (w *LocalWorld) Split(ctx context.Context, color, key int) (World, error) {
	f := w.f
	f.mu.Lock()
	f.splitEntries[w.rank] = splitEntry{color: color, key: key, set: true}
	startGen := f.splitGen
	f.splitCount++
	if f.splitCount == f.size {
		f.computeSplitLocked()
		f.splitCount = 0
		f.splitGen++
		f.cond.Broadcast()
	} else {
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				f.mu.Lock()
				f.cond.Broadcast()
				f.mu.Unlock()
			case <-stop:
			}
		}()
		for f.splitGen == startGen {
			if ctx.Err() != nil {
				close(stop)
				f.mu.Unlock()
				return nil, ErrTimedOut
			}
			f.cond.Wait()
		}
		close(stop)
	}
	result := f.splitResult[w.rank]
	f.mu.Unlock()
	return result, nil
}

// computeSplitLocked assigns each rank a sub-world once every rank in the
// parent has contributed a (color, key) pair. Caller must hold f.mu.
func (f *fabric) computeSplitLocked() {
	type member struct {
		rank, key int
	}
	groups := make(map[int][]member)
	for r, e := range f.splitEntries {
		groups[e.color] = append(groups[e.color], member{rank: r, key: e.key})
	}

	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool {
			if members[i].key != members[j].key {
				return members[i].key < members[j].key
			}
			return members[i].rank < members[j].rank
		})
		sub := newFabric(len(members))
		for newRank, m := range members {
			f.splitResult[m.rank] = &LocalWorld{f: sub, rank: Rank(newRank)}
		}
	}

	for i := range f.splitEntries {
		f.splitEntries[i] = splitEntry{}
	}
}
