package hypnoscope

import (
	"fmt"
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// Geometry computes per-annotation screen rectangles for each of
// the four views. Everything here is a pure function of the
// (immutable) ChartData plus the two sizing knobs, so any of it is
// safe to call any number of times, in any order.
type Geometry struct {
	Width     float64 // drawable horizontal span
	RowHeight float64 // fixed row height for grouped/stacked views
	Data      *ChartData
}

func NewGeometry(cd *ChartData, width, rowHeight float64) *Geometry {
	return &Geometry{
		Width:     width,
		RowHeight: rowHeight,
		Data:      cd,
	}
}

// CumulativeProportionAtStart sums the whole-night shares of every
// stage that precedes s in display order. It places a stage's merged
// block to the right of all earlier stages in the stacked view.
// Monotonically increasing in stage order, 0 for the first stage.
func (g *Geometry) CumulativeProportionAtStart(s Mt.Stage) float64 {
	var sum float64
	for _, prev := range Mt.Stages {
		if prev == s {
			break
		}
		sum += g.Data.StageProportions[prev]
	}
	return sum
}

// FirstRectWidth returns the full stage width for the annotation at
// the stage's first index, 0 for every other annotation of that
// stage. In the stacked view only the first rectangle per stage
// stays visible and absorbs the stage's whole width; the rest
// collapse to zero width but remain addressable scene elements, so
// no element churn happens across transitions.
func (g *Geometry) FirstRectWidth(s Mt.Stage, idx int) float64 {
	if first, ok := g.Data.FirstStageIndex[s]; ok && first == idx {
		return g.Data.StageProportions[s] * g.Width
	}
	return 0
}

// VerticalSlot is the fixed row of a stage in the grouped views
func (g *Geometry) VerticalSlot(s Mt.Stage) float64 {
	return g.RowHeight * float64(s)
}

// ProportionalOffset is the bar-chart x of one annotation: the runs
// of a stage laid out contiguously in temporal order, scaled by the
// stage's whole-night share. The within-stage prefix sum is cached
// on ChartData at construction.
func (g *Geometry) ProportionalOffset(idx int) float64 {
	a := g.Data.Annotations[idx]
	return g.Width * g.Data.StageProportions[a.Stage] * g.Data.PrefixShare(idx)
}

// TimeScale maps a clock time within the night onto the x span
func (g *Geometry) TimeScale(t time.Time) float64 {
	night := g.Data.NightDuration().Seconds()
	return g.Width * t.Sub(g.Data.Bedtime).Seconds() / night
}

// durationWidth is an annotation's true-duration width on the x span
func (g *Geometry) durationWidth(a Mt.Annotation) float64 {
	return g.Width * a.Duration().Seconds() / g.Data.NightDuration().Seconds()
}

// TimelineRect places an annotation chronologically on row 0
func (g *Geometry) TimelineRect(idx int) Mt.Rect {
	a := g.Data.Annotations[idx]
	return Mt.Rect{
		X: g.TimeScale(a.Start),
		Y: 0,
		W: g.durationWidth(a),
		H: g.RowHeight,
	}
}

// InstanceRect keeps the chronological x but moves the annotation
// to its stage's row
func (g *Geometry) InstanceRect(idx int) Mt.Rect {
	r := g.TimelineRect(idx)
	r.Y = g.VerticalSlot(g.Data.Annotations[idx].Stage)
	return r
}

// BarChartRect lays the runs of each stage out contiguously on the
// stage's row, each keeping its true-duration width
func (g *Geometry) BarChartRect(idx int) Mt.Rect {
	a := g.Data.Annotations[idx]
	return Mt.Rect{
		X: g.ProportionalOffset(idx),
		Y: g.VerticalSlot(a.Stage),
		W: g.durationWidth(a),
		H: g.RowHeight,
	}
}

// StackedRect collapses every stage to one merged block on row 0:
// x from the cumulative share of earlier stages, width nonzero only
// for the stage's first annotation.
func (g *Geometry) StackedRect(idx int) Mt.Rect {
	a := g.Data.Annotations[idx]
	return Mt.Rect{
		X: g.Width * g.CumulativeProportionAtStart(a.Stage),
		Y: 0,
		W: g.FirstRectWidth(a.Stage, idx),
		H: g.RowHeight,
	}
}

// Rect dispatches to the layout of the given view.
// Initial has no layout of its own, annotations enter on the timeline.
func (g *Geometry) Rect(v Mt.ViewState, idx int) Mt.Rect {
	switch v {
	case Mt.Instance:
		return g.InstanceRect(idx)
	case Mt.BarChart:
		return g.BarChartRect(idx)
	case Mt.StackedBarChart:
		return g.StackedRect(idx)
	default:
		return g.TimelineRect(idx)
	}
}

// StageLabels builds the per-stage percentage+duration labels for
// the stacked view, each anchored at the midpoint of its merged
// block. Stages with no time in the night get no label.
func (g *Geometry) StageLabels() []Mt.StageLabel {
	var labels []Mt.StageLabel
	for _, s := range Mt.Stages {
		p := g.Data.StageProportions[s]
		if p <= Epsilon {
			continue
		}
		labels = append(labels, Mt.StageLabel{
			Stage: s,
			Text: fmt.Sprintf("%s %v%% %s",
				s, FloatPrecise(p*100, 2), FormatClock(g.Data.StageTime(s))),
			X: g.Width * (g.CumulativeProportionAtStart(s) + p/2),
			Y: g.RowHeight / 2,
		})
	}
	return labels
}
