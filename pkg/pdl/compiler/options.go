package compiler

import (
	"time"

	"github.com/prost-planner/rddlc/pkg/pdl/precompute"
	"github.com/prost-planner/rddlc/pkg/pdl/simplify"
)

// Options configures the whole pipeline (§1 "Configuration"). Horizon,
// discount and concurrency bound come from the parsed instance itself and
// are not configured here; everything in Options is a compile-time choice
// with no package-level global state backing it.
type Options struct {
	Seed int64

	SynthesizeFDR bool
	Enumeration   simplify.Discipline

	PrecomputeWorkers int // <= 1 runs Fill sequentially (§5 default)

	DetectRewardLocks bool
	TrainingSetSize   int
	AnalyzerWalkCount  int
	AnalyzerWalkLength int
	AnalyzerWalkBudget time.Duration

	RunID string // stamped into the output header and every log field
}

// DefaultOptions returns Options with the Simplifier/Analyzer's own
// documented defaults (simplify.DisciplineDefault, precompute.
// DefaultOptions' walk/training-set sizing), sequential precompute, and a
// zero seed left for the caller to override from a flag or the current
// time.
func DefaultOptions() Options {
	return Options{
		SynthesizeFDR:      true,
		Enumeration:        simplify.DisciplineDefault,
		PrecomputeWorkers:  1,
		DetectRewardLocks:  true,
		TrainingSetSize:    200,
		AnalyzerWalkCount:  30,
		AnalyzerWalkLength: 0, // 0 defers to the task's own horizon, see precompute.DefaultOptions
		AnalyzerWalkBudget: 2 * time.Second,
	}
}

func (o Options) analyzerOptions(walkLength int) precompute.Options {
	length := o.AnalyzerWalkLength
	if length <= 0 {
		length = walkLength
	}
	return precompute.Options{
		WalkCount:         o.AnalyzerWalkCount,
		WalkLength:        length,
		TrainingSetSize:   o.TrainingSetSize,
		DetectRewardLocks: o.DetectRewardLocks,
		WalkBudget:        o.AnalyzerWalkBudget,
	}
}
