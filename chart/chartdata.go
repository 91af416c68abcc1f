package hypnoscope

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// Proportion sums are checked against this tolerance
const Epsilon = 1e-6

// ErrMalformedChartData means proportions that do not sum to ~1.0,
// or a stage that has no annotations but claims nonzero time.
// It is detected at construction, before any rendering attempt.
// The bundle is never repaired, the caller gets the error instead.
var ErrMalformedChartData = errors.New("malformed chart data")

// ChartData is the aggregate bundle for one night.
// Constructed once per session and treated as read-only afterwards,
// including the cached per-stage prefix sums used by the
// proportional view. If the night's data changes, discard the
// ChartData and its Controller and build new ones.
type ChartData struct {
	Annotations      []Mt.Annotation
	StageProportions map[Mt.Stage]float64
	FirstStageIndex  map[Mt.Stage]int
	Epochs           []Mt.Epoch
	Bedtime          time.Time

	// prefix[i] is the cumulative within-stage share of all
	// annotations of Annotations[i].Stage that precede it in
	// temporal order. Filled once here, O(1) lookup afterwards.
	prefix []float64
}

// NewChartData aggregates the classified epoch sequence into
// annotations (maximal same-stage runs), per-stage time shares,
// and first-occurrence indexes, then validates the result.
func NewChartData(bedtime time.Time, stages []Mt.Stage) (*ChartData, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: empty epoch sequence", ErrMalformedChartData)
	}

	epochs := make([]Mt.Epoch, len(stages))
	for i, s := range stages {
		epochs[i] = Mt.Epoch{Stage: s, Index: i}
	}

	// count epochs per stage for the whole-night shares
	stageEpochs := make(map[Mt.Stage]int)
	for _, s := range stages {
		stageEpochs[s]++
	}

	proportions := make(map[Mt.Stage]float64)
	for _, s := range Mt.Stages {
		proportions[s] = float64(stageEpochs[s]) / float64(len(stages))
	}

	// collapse the sequence into maximal same-stage runs
	var annotations []Mt.Annotation
	runStart := 0
	for i := 1; i <= len(stages); i++ {
		if i == len(stages) || stages[i] != stages[runStart] {
			runLen := i - runStart
			annotations = append(annotations, Mt.Annotation{
				Stage:      stages[runStart],
				Start:      bedtime.Add(time.Duration(runStart) * Mt.EpochDuration),
				End:        bedtime.Add(time.Duration(i) * Mt.EpochDuration),
				Proportion: float64(runLen) / float64(stageEpochs[stages[runStart]]),
			})
			runStart = i
		}
	}

	first := make(map[Mt.Stage]int)
	for i, a := range annotations {
		if _, seen := first[a.Stage]; !seen {
			first[a.Stage] = i
		}
	}

	cd := &ChartData{
		Annotations:      annotations,
		StageProportions: proportions,
		FirstStageIndex:  first,
		Epochs:           epochs,
		Bedtime:          bedtime,
	}
	cd.fillPrefix()

	if err := cd.Validate(); err != nil {
		slog.Error("ChartData failed validation", slog.Any("Error", err))
		return nil, err
	}
	return cd, nil
}

// fillPrefix builds the per-annotation running prefix sums in one
// pass: each annotation contributes its within-stage share, and the
// value recorded is the sum *before* it (first of a stage gets 0).
func (cd *ChartData) fillPrefix() {
	cd.prefix = make([]float64, len(cd.Annotations))
	running := make(map[Mt.Stage]float64)
	for i, a := range cd.Annotations {
		cd.prefix[i] = running[a.Stage]
		running[a.Stage] += a.Proportion
	}
}

// PrefixShare is the cumulative within-stage share contributed by
// annotations of the same stage that occur before index i.
func (cd *ChartData) PrefixShare(i int) float64 {
	return cd.prefix[i]
}

// NightDuration is the span of the whole classified night
func (cd *ChartData) NightDuration() time.Duration {
	return time.Duration(len(cd.Epochs)) * Mt.EpochDuration
}

// StageTime is the total time spent in a stage across the night,
// derived from its whole-night share.
func (cd *ChartData) StageTime(s Mt.Stage) time.Duration {
	epochs := cd.StageProportions[s] * float64(len(cd.Epochs))
	return time.Duration(math.Round(epochs)) * Mt.EpochDuration
}

// Validate checks the bundle invariants:
// whole-night shares sum to ~1.0, per-stage annotation proportions
// sum to ~1.0, and no stage claims time without any annotation.
func (cd *ChartData) Validate() error {
	var total float64
	for _, s := range Mt.Stages {
		total += cd.StageProportions[s]
	}
	if math.Abs(total-1.0) > Epsilon {
		return fmt.Errorf("%w: stage proportions sum to %v", ErrMalformedChartData, total)
	}

	perStage := make(map[Mt.Stage]float64)
	for _, a := range cd.Annotations {
		perStage[a.Stage] += a.Proportion
	}

	for _, s := range Mt.Stages {
		sum, present := perStage[s]
		if !present {
			if cd.StageProportions[s] > Epsilon {
				return fmt.Errorf("%w: stage %s has proportion %v but no annotations",
					ErrMalformedChartData, s, cd.StageProportions[s])
			}
			continue
		}
		if math.Abs(sum-1.0) > Epsilon {
			return fmt.Errorf("%w: stage %s annotation proportions sum to %v",
				ErrMalformedChartData, s, sum)
		}
	}

	return nil
}
