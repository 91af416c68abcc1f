package hypnoscope

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// ErrInvalidTransition means the requested view is not adjacent to
// the current one in the chain (or equals it). Never fatal: state
// and scene are left untouched, the caller just hears about it.
var ErrInvalidTransition = errors.New("invalid view transition")

// DefaultTransitionDuration is the fixed tween length applied to
// every animated position/width change
const DefaultTransitionDuration = 750 * time.Millisecond

// AnnotationKey is the stable scene-element identity of one
// annotation, shared by the Controller and every render backend
func AnnotationKey(idx int) string {
	return fmt.Sprintf("ann-%d", idx)
}

// edge is one directed transition in the view chain
type edge struct {
	From Mt.ViewState
	To   Mt.ViewState
}

// phase is one ordered step of a choreography. Attributes in Set
// are cut over synchronously before the tweens of the same phase
// start; attributes in Animate tween over the transition duration.
// Later phases start after all earlier animated phases settle.
type phase struct {
	Set     []Attr
	Animate []Attr
}

// choreography is the pure description of one edge's visual story:
// the ordered geometry phases, the axis changes, and whether
// per-stage labels appear once everything settles. A single generic
// run routine executes these against the Render Channel, so axis
// and tooltip teardown lives in exactly one place.
type choreography struct {
	Phases []phase
	Axes   func(c *Controller)
	Labels bool
}

// The allowed transition graph is a linear chain with adjacent,
// bidirectional edges only, plus the one-shot entry edge:
//
//	Initial -> Timeline <-> Instance <-> BarChart <-> StackedBarChart
//
// Each directed edge carries its own choreography because the
// visual story differs with the direction of travel.
var choreographies = map[edge]choreography{
	{Mt.Initial, Mt.Timeline}: {
		Phases: []phase{{Set: []Attr{AttrX, AttrY, AttrW, AttrH}}},
		Axes: func(c *Controller) {
			c.RC.DrawAxis(c.timeAxis(c.Geom.RowHeight))
		},
	},
	{Mt.Timeline, Mt.Instance}: {
		Phases: []phase{{Animate: []Attr{AttrX, AttrY, AttrW}}},
		Axes: func(c *Controller) {
			// vertical stage axis fades in while rows spread out,
			// horizontal axis drops to the bottom of the stack
			c.RC.DrawAxis(c.stageAxis())
			c.RC.DrawAxis(c.timeAxis(c.Geom.RowHeight * Mt.StageCount))
		},
	},
	{Mt.Instance, Mt.Timeline}: {
		Phases: []phase{{Animate: []Attr{AttrX, AttrY, AttrW}}},
		Axes: func(c *Controller) {
			c.RC.RemoveAxis(Mt.AxisStage)
			c.RC.DrawAxis(c.timeAxis(c.Geom.RowHeight))
		},
	},
	{Mt.Instance, Mt.BarChart}: {
		// width cut over synchronously before the horizontal slide,
		// then the row position follows: animating width and x
		// together would overlap neighbors mid-flight
		Phases: []phase{
			{Set: []Attr{AttrW}, Animate: []Attr{AttrX}},
			{Animate: []Attr{AttrY}},
		},
		Axes: func(c *Controller) {
			c.RC.DrawAxis(c.linearAxis(c.Geom.RowHeight * Mt.StageCount))
		},
	},
	{Mt.BarChart, Mt.Instance}: {
		Phases: []phase{{Animate: []Attr{AttrX, AttrY, AttrW}}},
		Axes: func(c *Controller) {
			c.RC.DrawAxis(c.stageAxis())
			c.RC.DrawAxis(c.timeAxis(c.Geom.RowHeight * Mt.StageCount))
		},
	},
	{Mt.BarChart, Mt.StackedBarChart}: {
		Phases: []phase{
			{Animate: []Attr{AttrX, AttrW}},
			{Animate: []Attr{AttrY}},
		},
		Axes: func(c *Controller) {
			c.RC.RemoveAxis(Mt.AxisStage)
			c.RC.DrawAxis(c.linearAxis(c.Geom.RowHeight))
		},
		Labels: true,
	},
	{Mt.StackedBarChart, Mt.BarChart}: {
		// reverse order from the forward edge: rows must separate
		// vertically before the bars can be told apart horizontally
		Phases: []phase{
			{Animate: []Attr{AttrY}},
			{Animate: []Attr{AttrX, AttrW}},
		},
		Axes: func(c *Controller) {
			c.RC.DrawAxis(c.stageAxis())
			c.RC.DrawAxis(c.linearAxis(c.Geom.RowHeight * Mt.StageCount))
		},
	},
}

// Controller is the view transition state machine. It holds the
// current ViewState, validates requests against the chain, and
// runs the matching choreography through the Render Channel.
// One Controller serves one ChartData for one session.
type Controller struct {
	MU       sync.Mutex
	Geom     *Geometry
	RC       RenderChannel
	Tooltip  TooltipSink
	Duration time.Duration
	view     Mt.ViewState
}

func NewController(g *Geometry, rc RenderChannel, sink TooltipSink) *Controller {
	return &Controller{
		Geom:     g,
		RC:       rc,
		Tooltip:  sink,
		Duration: DefaultTransitionDuration,
		view:     Mt.Initial,
	}
}

// CurrentView reports the last successfully entered view
func (c *Controller) CurrentView() Mt.ViewState {
	c.MU.Lock()
	defer c.MU.Unlock()
	return c.view
}

// RequestTransition moves the chart to an adjacent view. A request
// for a non-adjacent or equal view returns ErrInvalidTransition and
// changes nothing. A request during an in-flight transition
// interrupts it first: partially animated attributes are cut over
// before the new choreography starts, so the scene never straddles
// two layouts and rapid input cannot queue animations up.
func (c *Controller) RequestTransition(target Mt.ViewState) error {
	c.MU.Lock()
	defer c.MU.Unlock()

	ch, ok := choreographies[edge{c.view, target}]
	if !ok {
		slog.Debug("Transition refused",
			slog.String("from", c.view.String()),
			slog.String("to", target.String()))
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.view, target)
	}

	c.runTransition(target, ch)
	c.view = target
	return nil
}

// Forward steps one view deeper into the chain, Back one view out.
// Both are conveniences for host UIs that only offer adjacent moves.
func (c *Controller) Forward() error {
	return c.RequestTransition(c.CurrentView() + 1)
}

func (c *Controller) Back() error {
	return c.RequestTransition(c.CurrentView() - 1)
}

// runTransition is the single generic executor for every edge.
// Teardown of stale state happens here once, not in each edge.
func (c *Controller) runTransition(to Mt.ViewState, ch choreography) {
	c.RC.Interrupt()
	c.RC.HideTooltip()
	c.RC.ClearLabels()

	for i, a := range c.Geom.Data.Annotations {
		c.RC.Ensure(AnnotationKey(i), a)
	}

	var delay time.Duration
	for _, p := range ch.Phases {
		for idx := range c.Geom.Data.Annotations {
			key := AnnotationKey(idx)
			r := c.Geom.Rect(to, idx)
			for _, at := range p.Set {
				c.RC.Set(key, at, rectAttr(r, at))
			}
			for _, at := range p.Animate {
				c.RC.Animate(key, at, rectAttr(r, at), delay, c.Duration)
			}
		}
		if len(p.Animate) > 0 {
			delay += c.Duration
		}
	}

	if ch.Axes != nil {
		ch.Axes(c)
	}
	if ch.Labels {
		c.RC.DrawLabels(c.Geom.StageLabels())
	}

	// element cardinality may have changed, rebind from scratch
	c.RC.BindHover(c.Tooltip)
}

func rectAttr(r Mt.Rect, at Attr) float64 {
	switch at {
	case AttrX:
		return r.X
	case AttrY:
		return r.Y
	case AttrW:
		return r.W
	default:
		return r.H
	}
}

func (c *Controller) timeAxis(y float64) Mt.Axis {
	return Mt.Axis{
		Kind: Mt.AxisTime,
		Y:    y,
		Min:  0,
		Max:  c.Geom.Data.NightDuration().Seconds(),
	}
}

func (c *Controller) linearAxis(y float64) Mt.Axis {
	return Mt.Axis{Kind: Mt.AxisLinear, Y: y, Min: 0, Max: 1}
}

func (c *Controller) stageAxis() Mt.Axis {
	return Mt.Axis{
		Kind: Mt.AxisStage,
		Min:  0,
		Max:  c.Geom.RowHeight * Mt.StageCount,
	}
}
