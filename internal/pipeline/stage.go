package pipeline

import (
	"errors"
	"fmt"
)

// Stage is a step of the per-dataset state machine.
type Stage int

const (
	StageLoading Stage = iota
	StageMaskBuilt
	StageReduced
	StageMetricsComputed
	StageReported
	StageSaved
	StagePlotted
	StageDone
)

var stageNames = [...]string{
	StageLoading:         "loading",
	StageMaskBuilt:       "mask_built",
	StageReduced:         "reduced",
	StageMetricsComputed: "metrics_computed",
	StageReported:        "reported",
	StageSaved:           "saved",
	StagePlotted:         "plotted",
	StageDone:            "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("pipeline already run")

// StageError names the dataset and the stage that failed.
type StageError struct {
	Dataset string
	Stage   Stage
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("dataset %s: %s: %v", e.Dataset, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
