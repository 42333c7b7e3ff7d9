package extend

import (
	"fmt"
	"math"
)

// DefaultMaxRepeatCount bounds how many times a section may be repeated.
const DefaultMaxRepeatCount = 1000

// repeatEpsilon absorbs float error so an exact multiple does not round up.
const repeatEpsilon = 1e-9

// Plan describes how the middle of the output is built.
type Plan struct {
	Before      Section `json:"before"`
	LoopUnit    Section `json:"loop_unit"`
	RepeatCount int     `json:"repeat_count"`
	Target      float64 `json:"target"`
	TrimSeconds float64 `json:"trim_seconds"`
}

// PlanLoop computes how many copies of sec cover target seconds and how much
// of the last copy is cut off. maxRepeat <= 0 means DefaultMaxRepeatCount.
func PlanLoop(sec Section, target float64, maxRepeat int) (Plan, error) {
	unit := sec.Duration()
	if unit <= 0 {
		return Plan{}, fmt.Errorf("%w: section %s has no length", ErrDegenerateSection, sec)
	}
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return Plan{}, fmt.Errorf("%w: target %v must be positive", ErrInvalidRequest, target)
	}
	if maxRepeat <= 0 {
		maxRepeat = DefaultMaxRepeatCount
	}

	ratio := math.Ceil(target/unit - repeatEpsilon)
	if ratio > float64(maxRepeat) {
		return Plan{}, fmt.Errorf("%w: %.0fs of a %.3fs section needs %.0f repeats, limit %d",
			ErrLoopCountExceeded, target, unit, ratio, maxRepeat)
	}
	repeats := max(1, int(ratio))

	trim := float64(repeats)*unit - target
	if trim < repeatEpsilon*unit {
		trim = 0
	}
	return Plan{
		Before:      Section{Start: 0, End: sec.Start},
		LoopUnit:    sec,
		RepeatCount: repeats,
		Target:      target,
		TrimSeconds: trim,
	}, nil
}
