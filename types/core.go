package types

/*

	These are the "immutable" core types of Hypnoscope,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no functions defined here beyond trivial accessors.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type Annotations []Mt.Annotation

*/

import "time"

// EpochDuration is the fixed length of one classified time slice.
// The classifier emits exactly one Stage per epoch.
const EpochDuration = 30 * time.Second

// Stage is one of the five sleep classifications.
// The numeric order is significant: it fixes the vertical
// row a stage occupies in the grouped and stacked views.
type Stage int

const (
	Wake Stage = iota
	N1
	N2
	N3
	REM
)

// StageCount is the size of the fixed stage set
const StageCount = 5

// Stages lists all stages in display order
var Stages = [StageCount]Stage{Wake, N1, N2, N3, REM}

func (s Stage) String() string {
	switch s {
	case Wake:
		return "W"
	case N1:
		return "N1"
	case N2:
		return "N2"
	case N3:
		return "N3"
	case REM:
		return "REM"
	default:
		return "unknown"
	}
}

// Epoch is a single classified time slice.
// Immutable once produced by the classifier.
type Epoch struct {
	Stage Stage // assigned sleep stage
	Index int   // position in the night, 0-based
}

// Annotation is a maximal run of consecutive same-stage epochs.
// Proportion is this run's share of *all* time spent in its stage
// across the whole night, so per-stage Proportions sum to 1.0.
type Annotation struct {
	Stage      Stage
	Start      time.Time
	End        time.Time
	Proportion float64
}

// Duration of the run
func (a Annotation) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// ViewState is one of the four visual layouts, plus the
// Initial pseudo-state that only ever moves forward to Timeline.
type ViewState int

const (
	Initial ViewState = iota
	Timeline
	Instance
	BarChart
	StackedBarChart
)

func (v ViewState) String() string {
	switch v {
	case Initial:
		return "initial"
	case Timeline:
		return "timeline"
	case Instance:
		return "instance"
	case BarChart:
		return "bar-chart"
	case StackedBarChart:
		return "stacked-bar-chart"
	default:
		return "unknown"
	}
}

// Rect is one annotation's screen geometry in a single view.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// AxisKind distinguishes the drawable axes
type AxisKind int

const (
	AxisTime   AxisKind = iota // horizontal, clock-time scale
	AxisLinear                 // horizontal, proportional scale
	AxisStage                  // vertical, one tick per stage row
)

// Axis is a pre-built scale description handed to the Render Channel.
type Axis struct {
	Kind AxisKind
	Y    float64 // vertical placement of a horizontal axis
	Min  float64
	Max  float64
}

// StageLabel is the per-stage percentage+duration annotation
// rendered at the midpoint of a merged block in the stacked view.
type StageLabel struct {
	Stage Stage
	Text  string
	X     float64
	Y     float64
}

// Session is a persisted night: the raw epoch sequence plus
// identity and timing metadata. This is the unit of storage
// handled by output plugins.
type Session struct {
	ID      string
	Bedtime time.Time
	Stages  []Stage // one entry per epoch, classifier order
}
