package dag

import (
	"sort"

	"github.com/coretensor/tensorsched/internal/op"
)

// partitionResult is the (starting_task, num_tasks, sum_cost) triple the
// window search retains.
type partitionResult struct {
	maxColors    int
	startingTask int
	numTasks     int
	sumCost      int64
}

// partitionWindow sorts the ready queue by cost descending in place (every
// rank's ready queue is built from the identical DAG, so every rank sorts
// identically without communicating) and picks the widest balanceable
// contiguous run starting at some index, stopping as soon as adding the
// next task would let the cheapest task in the run starve relative to the
// per-rank average.
func (s *Schedule) partitionWindow() partitionResult {
	r := len(s.readyQueue)
	taskCap := s.partitions
	if taskCap <= 0 {
		taskCap = s.world.Size()
	}
	maxColors := minInt(s.world.Size(), r, taskCap)

	sort.SliceStable(s.readyQueue, func(i, j int) bool {
		return s.readyQueue[i].EstimateCost() > s.readyQueue[j].EstimateCost()
	})

	p := int64(s.world.Size())
	var bestStart, bestNum int
	var bestSum int64

	for start := 0; start < r; start++ {
		var sumCost, minCost int64
		numTasks := 0
		for i := start; i < r; i++ {
			thisCost := s.readyQueue[i].EstimateCost()
			if minCost == 0 || thisCost < minCost {
				minCost = thisCost
			}
			if minCost < (thisCost+sumCost)/p {
				break
			}
			numTasks = i - start + 1
			sumCost += thisCost
			if numTasks >= maxColors {
				break
			}
		}
		if numTasks > bestNum {
			bestStart, bestNum, bestSum = start, numTasks, sumCost
		}
	}

	return partitionResult{maxColors: maxColors, startingTask: bestStart, numTasks: bestNum, sumCost: bestSum}
}

// colorForRank implements the proportional colour assignment: sum_cost is split into
// world-size equal strips, rank samples the midpoint of its own strip,
// and walks window deducting cost until the remainder falls below the
// next task's cost. Every rank computes this independently and arrives at
// the same answer for the same rank, with no agreement round needed.
func colorForRank(rank, worldSize int, window []*op.Operation, sumCost int64) int {
	p := int64(worldSize)
	stripWidth := sumCost / p
	remaining := stripWidth*int64(rank) + sumCost/(2*p)

	for i, t := range window {
		cost := t.EstimateCost()
		if remaining < cost {
			return i
		}
		remaining -= cost
	}
	// Edge case: the sampled offset exceeded every task's cost; snap to the last task in the window.
	return len(window) - 1
}

func minInt(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
