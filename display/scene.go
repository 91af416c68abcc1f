package hypnoscope

import (
	"sync"
	"time"

	Hc "github.com/oneirix/hypnoscope/chart"
	Mt "github.com/oneirix/hypnoscope/types"
)

// element is one addressable rectangle in the scene
type element struct {
	Datum Mt.Annotation
	Attrs map[Hc.Attr]float64
}

// tween is one in-flight attribute animation. From is sampled when
// the tween actually starts, so delayed tweens pick up whatever
// value earlier phases left behind.
type tween struct {
	Key      string
	Attr     Hc.Attr
	From     float64
	To       float64
	StartAt  time.Time
	Duration time.Duration
	started  bool
}

// SceneChannel is the in-memory Render Channel implementation.
// It holds current attribute values for every element, advances
// in-flight tweens when Step is called by the frame scheduler, and
// hands out immutable snapshots for whichever surface does the
// actual drawing (terminal cells or websocket JSON).
type SceneChannel struct {
	MU       sync.Mutex
	elements map[string]*element
	order    []string // insertion order, stable for drawing
	tweens   []*tween
	axes     map[Mt.AxisKind]Mt.Axis
	labels   []Mt.StageLabel
	pending  []Mt.StageLabel // held back until the tweens settle
	sink     Hc.TooltipSink
	now      func() time.Time
}

func NewSceneChannel() *SceneChannel {
	return &SceneChannel{
		elements: make(map[string]*element),
		axes:     make(map[Mt.AxisKind]Mt.Axis),
		now:      time.Now,
	}
}

// Ensure selects the element by key, creating it on first use
func (sc *SceneChannel) Ensure(key string, datum Mt.Annotation) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	if _, ok := sc.elements[key]; ok {
		return
	}
	sc.elements[key] = &element{
		Datum: datum,
		Attrs: make(map[Hc.Attr]float64),
	}
	sc.order = append(sc.order, key)
}

func (sc *SceneChannel) Remove(key string) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	delete(sc.elements, key)
	for i, k := range sc.order {
		if k == key {
			sc.order = append(sc.order[:i], sc.order[i+1:]...)
			break
		}
	}
}

// Set cuts an attribute over immediately, cancelling any tween on it
func (sc *SceneChannel) Set(key string, attr Hc.Attr, value float64) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	sc.dropTween(key, attr)
	if el, ok := sc.elements[key]; ok {
		el.Attrs[attr] = value
	}
}

// Animate schedules a tween from the attribute's current value
// (sampled at start time) to the target
func (sc *SceneChannel) Animate(key string, attr Hc.Attr, value float64, delay, duration time.Duration) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	sc.dropTween(key, attr)
	sc.tweens = append(sc.tweens, &tween{
		Key:      key,
		Attr:     attr,
		To:       value,
		StartAt:  sc.now().Add(delay),
		Duration: duration,
	})
}

// Interrupt cancels every in-flight tween. Attributes keep whatever
// value the last Step left them at, so the scene is frozen in place
// for the next transition to pick up.
func (sc *SceneChannel) Interrupt() {
	sc.MU.Lock()
	defer sc.MU.Unlock()
	sc.tweens = sc.tweens[:0]
	// labels held back for the aborted transition never publish
	sc.pending = nil
}

func (sc *SceneChannel) DrawAxis(ax Mt.Axis) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	// the two horizontal scales replace one another
	switch ax.Kind {
	case Mt.AxisTime:
		delete(sc.axes, Mt.AxisLinear)
	case Mt.AxisLinear:
		delete(sc.axes, Mt.AxisTime)
	}
	sc.axes[ax.Kind] = ax
}

func (sc *SceneChannel) RemoveAxis(kind Mt.AxisKind) {
	sc.MU.Lock()
	defer sc.MU.Unlock()
	delete(sc.axes, kind)
}

// DrawLabels publishes the labels once the scene has settled.
// While tweens are still in flight the labels are held back, so a
// label never sits on a rectangle that is mid-collapse.
func (sc *SceneChannel) DrawLabels(labels []Mt.StageLabel) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	if len(sc.tweens) > 0 {
		sc.pending = labels
		return
	}
	sc.labels = labels
}

func (sc *SceneChannel) ClearLabels() {
	sc.MU.Lock()
	defer sc.MU.Unlock()
	sc.labels = nil
	sc.pending = nil
}

func (sc *SceneChannel) BindHover(sink Hc.TooltipSink) {
	sc.MU.Lock()
	defer sc.MU.Unlock()
	sc.sink = sink
}

func (sc *SceneChannel) HideTooltip() {
	sc.MU.Lock()
	sink := sc.sink
	sc.MU.Unlock()

	if sink != nil {
		sink.Hide()
	}
}

// dropTween removes any pending tween on (key, attr).
// Caller holds the lock.
func (sc *SceneChannel) dropTween(key string, attr Hc.Attr) {
	kept := sc.tweens[:0]
	for _, tw := range sc.tweens {
		if tw.Key != key || tw.Attr != attr {
			kept = append(kept, tw)
		}
	}
	sc.tweens = kept
}

// Step advances every live tween to the given instant. Settled
// tweens snap to their target and drop off. Called by the frame
// scheduler, never by the Controller.
func (sc *SceneChannel) Step(now time.Time) {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	kept := sc.tweens[:0]
	for _, tw := range sc.tweens {
		el, ok := sc.elements[tw.Key]
		if !ok {
			continue
		}

		if now.Before(tw.StartAt) {
			kept = append(kept, tw)
			continue
		}

		if !tw.started {
			tw.From = el.Attrs[tw.Attr]
			tw.started = true
		}

		progress := float64(now.Sub(tw.StartAt)) / float64(tw.Duration)
		if progress >= 1.0 {
			el.Attrs[tw.Attr] = tw.To
			continue
		}

		el.Attrs[tw.Attr] = tw.From + (tw.To-tw.From)*progress
		kept = append(kept, tw)
	}
	sc.tweens = kept
	sc.publishLabelsLocked()
}

// publishLabelsLocked promotes held-back labels once no tween is in
// flight. Caller holds the lock.
func (sc *SceneChannel) publishLabelsLocked() {
	if len(sc.tweens) == 0 && sc.pending != nil {
		sc.labels = sc.pending
		sc.pending = nil
	}
}

// Settle fast-forwards every tween straight to its target.
// Used on shutdown and by tests that do not run a frame loop.
func (sc *SceneChannel) Settle() {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	for _, tw := range sc.tweens {
		if el, ok := sc.elements[tw.Key]; ok {
			el.Attrs[tw.Attr] = tw.To
		}
	}
	sc.tweens = sc.tweens[:0]
	sc.publishLabelsLocked()
}

// Animating reports whether any tween is still in flight
func (sc *SceneChannel) Animating() bool {
	sc.MU.Lock()
	defer sc.MU.Unlock()
	return len(sc.tweens) > 0
}

// HandlePointer hit-tests the scene and forwards the result to the
// bound tooltip sink: Show on entering an element, Move inside it,
// Hide on leaving. Coordinates are in scene units.
func (sc *SceneChannel) HandlePointer(x, y float64) {
	sc.MU.Lock()
	sink := sc.sink
	var hit *element
	for i := len(sc.order) - 1; i >= 0; i-- {
		el := sc.elements[sc.order[i]]
		ex, ey := el.Attrs[Hc.AttrX], el.Attrs[Hc.AttrY]
		ew, eh := el.Attrs[Hc.AttrW], el.Attrs[Hc.AttrH]
		if ew > 0 && x >= ex && x <= ex+ew && y >= ey && y <= ey+eh {
			hit = el
			break
		}
	}
	sc.MU.Unlock()

	if sink == nil {
		return
	}
	if hit == nil {
		sink.Hide()
		return
	}
	sink.Show(hit.Datum, x, y)
}

// ElementRect is one element's current geometry, as drawn
type ElementRect struct {
	Key        string  `json:"key"`
	Stage      string  `json:"stage"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"width"`
	H          float64 `json:"height"`
	Proportion float64 `json:"proportion"`
}

// Snapshot is one coherent frame of the scene
type Snapshot struct {
	Rects  []ElementRect   `json:"rects"`
	Axes   []Mt.Axis       `json:"axes"`
	Labels []Mt.StageLabel `json:"labels"`
}

// Snap copies the current scene state out under the lock
func (sc *SceneChannel) Snap() Snapshot {
	sc.MU.Lock()
	defer sc.MU.Unlock()

	snap := Snapshot{
		Rects:  make([]ElementRect, 0, len(sc.order)),
		Labels: append([]Mt.StageLabel(nil), sc.labels...),
	}
	for _, key := range sc.order {
		el := sc.elements[key]
		snap.Rects = append(snap.Rects, ElementRect{
			Key:        key,
			Stage:      el.Datum.Stage.String(),
			X:          el.Attrs[Hc.AttrX],
			Y:          el.Attrs[Hc.AttrY],
			W:          el.Attrs[Hc.AttrW],
			H:          el.Attrs[Hc.AttrH],
			Proportion: el.Datum.Proportion,
		})
	}
	for _, ax := range sc.axes {
		snap.Axes = append(snap.Axes, ax)
	}
	return snap
}
