// Package telemetry renders the scheduler's per-wave decisions the way
// rank 0 is expected to: one structured log line per wave, describing the
// partition window, colour count, and imbalance measured. Nothing here
// feeds back into scheduling decisions.
package telemetry

import (
	"go.uber.org/zap"
)

// NewLogger builds the SugaredLogger every rank-0 wave line goes through.
// Production wiring wants JSON output; the CLI demo swaps in a console
// encoder via development mode.
func NewLogger(development bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// TaskCost pairs an operation's display name with its estimated cost, the
// tuple logged for every task in a wave's ready-queue dump.
type TaskCost struct {
	Name string
	Cost int64
}

// WaveEvent is one wave's worth of scheduling decisions and outcomes.
type WaveEvent struct {
	MaxColors    int
	StartingTask int
	NumTasks     int
	ReadyQueue   []TaskCost

	ImbalanceWallSeconds  float64
	ImbalanceAccumSeconds float64
}

// WaveTrace accumulates WaveEvents across an Execute call and can replay
// them through a logger. Keeping the events in a slice (rather than logging
// eagerly) lets a caller that isn't rank 0 skip emission entirely while
// still exercising the exact same scheduling code path.
type WaveTrace struct {
	RunID  string
	Events []WaveEvent
}

// NewWaveTrace returns an empty trace tagged with runID (typically a
// uuid.New().String() minted once per Execute call).
func NewWaveTrace(runID string) *WaveTrace {
	return &WaveTrace{RunID: runID}
}

// Record appends ev to the trace.
func (t *WaveTrace) Record(ev WaveEvent) {
	if t == nil {
		return
	}
	t.Events = append(t.Events, ev)
}

// Log emits every recorded wave through log, one structured line per wave,
// in the order they were recorded.
func (t *WaveTrace) Log(log *zap.SugaredLogger) {
	if t == nil || log == nil {
		return
	}
	for i, ev := range t.Events {
		log.Infow("wave",
			"run_id", t.RunID,
			"wave", i,
			"max_colors", ev.MaxColors,
			"starting_task", ev.StartingTask,
			"num_tasks", ev.NumTasks,
			"ready_queue", ev.ReadyQueue,
			"imbalance_wall_seconds", ev.ImbalanceWallSeconds,
			"imbalance_accum_seconds", ev.ImbalanceAccumSeconds,
		)
	}
}
