// Package timing holds the scheduler's aggregated wave timings.
package timing

import "time"

// ScheduleTimer accumulates per-wave timings across an Execute call. The
// zero value is the timer an empty schedule (no operations recorded)
// returns.
type ScheduleTimer struct {
	TotalTime          time.Duration
	CommDownTime       time.Duration
	CommUpTime         time.Duration
	ExecTime           time.Duration
	ImbalanceWallTime  time.Duration
	ImbalanceAccumTime time.Duration
}

// Add accumulates other into t.
func (t *ScheduleTimer) Add(other ScheduleTimer) {
	t.TotalTime += other.TotalTime
	t.CommDownTime += other.CommDownTime
	t.CommUpTime += other.CommUpTime
	t.ExecTime += other.ExecTime
	t.ImbalanceWallTime += other.ImbalanceWallTime
	t.ImbalanceAccumTime += other.ImbalanceAccumTime
}
