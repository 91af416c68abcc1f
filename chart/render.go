package hypnoscope

import (
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// Attr names a numeric attribute of a scene element
type Attr string

const (
	AttrX Attr = "x"
	AttrY Attr = "y"
	AttrW Attr = "width"
	AttrH Attr = "height"
)

// TooltipSink receives hover traffic from the Render Channel:
// the bound annotation plus the cursor position. Hide is called
// when the cursor leaves an element (or a transition starts).
type TooltipSink interface {
	Show(datum Mt.Annotation, x, y float64)
	Move(datum Mt.Annotation, x, y float64)
	Hide()
}

// RenderChannel is the abstract drawing surface the Controller
// drives. The core never touches a rendering backend directly, so
// terminal, websocket, or test backends are interchangeable without
// touching the state machine or the geometry functions.
//
// Elements are addressed by a stable key (the annotation identity).
// Animate tweens one attribute from its current value to the target
// over the duration, starting after the delay; the channel's own
// frame scheduler drives the tween. Interrupt cancels every
// in-flight tween, leaving each attribute at its current value, so
// a new transition never races a stale one. DrawLabels may be
// called while tweens are still running: the channel shows the
// labels only once the scene has settled.
type RenderChannel interface {
	Ensure(key string, datum Mt.Annotation)
	Remove(key string)
	Set(key string, attr Attr, value float64)
	Animate(key string, attr Attr, value float64, delay, duration time.Duration)
	Interrupt()
	DrawAxis(ax Mt.Axis)
	RemoveAxis(kind Mt.AxisKind)
	DrawLabels(labels []Mt.StageLabel)
	ClearLabels()
	BindHover(sink TooltipSink)
	HideTooltip()
}
