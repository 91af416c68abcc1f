package hypnoscope

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Hc "github.com/oneirix/hypnoscope/chart"
	Mo "github.com/oneirix/hypnoscope/obvy"
	Mt "github.com/oneirix/hypnoscope/types"
)

const (
	screenGutter = 4
	rowCells     = 3 // terminal cells per stage row
)

// HypnoView is the terminal surface for one night's chart
type HypnoView struct {
	MU       sync.Mutex        // State locks to read data
	Ctrl     *Hc.Controller    // view transition state machine
	Geom     *Hc.Geometry      // layout in cell units
	Scene    *SceneChannel     // the render channel being drawn
	Screen   tcell.Screen      // the screen itself, nil when headless
	Stats    *Mo.StatsInternal // Internal status for prometheus
	Animator *Animator         // frame scheduler
	Tooltip  *TermTooltip      // hover readout
	server   *http.Server      // stats + websocket server
}

// TermTooltip is the terminal TooltipSink: it keeps the hover text
// for DrawFrame and goes blank the moment a transition starts, so
// no stale readout points at a rectangle that has moved.
type TermTooltip struct {
	MU   sync.Mutex
	Text string
	X    int
	Y    int
}

func (t *TermTooltip) Show(datum Mt.Annotation, x, y float64) {
	t.MU.Lock()
	defer t.MU.Unlock()
	t.Text = fmt.Sprintf("%s  %s - %s  (%s, %v%% of stage)",
		datum.Stage,
		datum.Start.Format("15:04"),
		datum.End.Format("15:04"),
		Hc.FormatClock(datum.Duration()),
		Hc.FloatPrecise(datum.Proportion*100, 2))
	t.X = int(x)
	t.Y = int(y)
}

func (t *TermTooltip) Move(datum Mt.Annotation, x, y float64) {
	t.Show(datum, x, y)
}

func (t *TermTooltip) Hide() {
	t.MU.Lock()
	defer t.MU.Unlock()
	t.Text = ""
}

func (t *TermTooltip) current() string {
	t.MU.Lock()
	defer t.MU.Unlock()
	return t.Text
}

// StageStyle maps a stage onto its drawing color
func StageStyle(s string) tcell.Style {
	var color tcell.Color
	switch s {
	case "W":
		color = tcell.ColorDarkOrange
	case "N1":
		color = tcell.ColorLightSkyBlue
	case "N2":
		color = tcell.ColorDodgerBlue
	case "N3":
		color = tcell.ColorDarkBlue
	case "REM":
		color = tcell.ColorMediumPurple
	default:
		color = tcell.ColorGray
	}
	return tcell.StyleDefault.Background(color)
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *HypnoView) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *HypnoView) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
}

// drawRect fills one annotation rectangle with its stage color
func (v *HypnoView) drawRect(r ElementRect) {
	if r.W < 0.5 {
		return // collapsed rectangles stay addressable but invisible
	}
	style := StageStyle(r.Stage)
	x1 := 1 + int(r.X)
	x2 := 1 + int(r.X+r.W)
	if x2 <= x1 {
		x2 = x1 + 1
	}
	y1 := screenGutter + int(r.Y)
	y2 := screenGutter + int(r.Y+r.H)

	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			v.Screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

// drawAxis renders one axis of the snapshot
func (v *HypnoView) drawAxis(ax Mt.Axis, width int) {
	switch ax.Kind {
	case Mt.AxisStage:
		// one tick label per stage row
		for _, s := range Mt.Stages {
			y := screenGutter + int(v.Geom.VerticalSlot(s)) + rowCells/2
			v.DrawText(1, y, screenGutter, y, s.String())
		}
	case Mt.AxisTime:
		y := screenGutter + int(ax.Y)
		bed := v.Geom.Data.Bedtime
		v.DrawText(1, y, width, y, bed.Format("15:04"))
		end := bed.Add(v.Geom.Data.NightDuration())
		v.DrawText(width-8, y, width, y, end.Format("15:04"))
	case Mt.AxisLinear:
		y := screenGutter + int(ax.Y)
		v.DrawText(1, y, width, y, "0%")
		v.DrawText(width-6, y, width, y, "100%")
	}
}

// DrawFrame renders one snapshot of the scene. Safe to call from
// the Animator at any time; a headless view just skips drawing.
func (v *HypnoView) DrawFrame() {
	if v.Screen == nil {
		return
	}

	v.MU.Lock()
	defer v.MU.Unlock()

	start := time.Now()
	width, height := v.GetScreenSize()

	v.Screen.Clear()
	v.DrawViewBorder(width-2, height-1)

	snap := v.Scene.Snap()
	for _, r := range snap.Rects {
		v.drawRect(r)
	}
	for _, ax := range snap.Axes {
		v.drawAxis(ax, width-2)
	}
	for _, l := range snap.Labels {
		v.DrawText(1+int(l.X), screenGutter+int(l.Y), width, height, l.Text)
	}

	if tip := v.Tooltip.current(); tip != "" {
		v.DrawText(2, height-3, width-2, height-3, tip)
	}

	view := v.Ctrl.CurrentView().String()
	v.DrawText(1, 1, width-14, 2, fmt.Sprintf("VIEW: %s", view))
	v.DrawText(1, height-1, width, height+10, "/n/ next view | /b/ back | /ESC/ to quit")
	v.DrawText(width-12, height-1, width, height+10, "HYPNOSCOPE")

	v.Screen.Show()
	v.Stats.RecFrameTimer(time.Since(start).Seconds())
}

// StepView moves one view forward or back through the chain.
// An ErrInvalidTransition here just means the end of the chain.
func (v *HypnoView) StepView(forward bool) {
	from := v.Ctrl.CurrentView()

	var err error
	if forward {
		err = v.Ctrl.Forward()
	} else {
		err = v.Ctrl.Back()
	}
	if err != nil {
		if !errors.Is(err, Hc.ErrInvalidTransition) {
			slog.Error("Transition failed", slog.Any("Error", err))
		}
		return
	}

	v.Stats.RecTransition(from.String(), v.Ctrl.CurrentView().String())
}

// HandleMouseClick hit-tests the chart area and raises the tooltip
func (v *HypnoView) HandleMouseClick(x, y int) {
	v.Scene.HandlePointer(float64(x-1), float64(y-screenGutter))
}

// Shutdown stops the frame loop and releases the terminal.
// No lock is taken here: Stop waits for the frame goroutine, which
// may itself be blocked on MU inside DrawFrame.
func (v *HypnoView) Shutdown() {
	if v.Animator != nil {
		v.Animator.Stop()
	}
	if v.Screen != nil {
		v.Screen.Fini()
	}
}

// Exit cleanly
func (v *HypnoView) exit() {
	v.Shutdown()
	os.Exit(0)
}

// Running Loop to handle events
func (v *HypnoView) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			// Catch quit and exit
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				v.exit()
			}

			switch {
			case ev.Rune() == 'n' || ev.Key() == tcell.KeyRight:
				v.StepView(true)
			case ev.Rune() == 'b' || ev.Key() == tcell.KeyLeft:
				v.StepView(false)
			}

		case *tcell.EventMouse:
			// Button1 is Left Mouse Button
			if ev.Buttons() == tcell.Button1 {
				v.HandleMouseClick(ev.Position())
			}
		}
	}
}

// GetScreenSize provides the terminal size for drawing
func (v *HypnoView) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen re-fits the chart after terminal changes.
// The current view's layout is re-applied without animation.
func (v *HypnoView) ResizeScreen() {
	v.Screen.Sync()

	width, _ := v.GetScreenSize()
	v.MU.Lock()
	v.Geom.Width = float64(width - 2)
	v.MU.Unlock()

	v.Reflow()
	v.DrawFrame()
}

// Reflow re-sets every element to the current view's geometry.
// No animation: this is a same-view cut, not a transition.
func (v *HypnoView) Reflow() {
	view := v.Ctrl.CurrentView()
	if view == Mt.Initial {
		return
	}
	for i := range v.Geom.Data.Annotations {
		key := Hc.AnnotationKey(i)
		r := v.Geom.Rect(view, i)
		v.Scene.Set(key, Hc.AttrX, r.X)
		v.Scene.Set(key, Hc.AttrY, r.Y)
		v.Scene.Set(key, Hc.AttrW, r.W)
		v.Scene.Set(key, Hc.AttrH, r.H)
	}
}

// NewHypnoView creates the tcell screen that displays the chart
func NewHypnoView(cd *Hc.ChartData) (*HypnoView, error) {
	if cd == nil || len(cd.Annotations) == 0 {
		slog.Error("Could not get ChartData for display")
		return nil, errors.New("chart data not found")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		slog.Error("Could not get new screen", slog.Any("Error", err))
		return nil, err
	}
	if err := screen.Init(); err != nil {
		slog.Error("Could not initialize screen", slog.Any("Error", err))
		return nil, err
	}

	// Define and configure the default screen
	defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	screen.SetStyle(defStyle)
	screen.EnableMouse()

	width, _ := screen.Size()
	geom := Hc.NewGeometry(cd, float64(width-2), rowCells)

	scene := NewSceneChannel()
	tooltip := &TermTooltip{}

	// create an attached prometheus registry
	stats := Mo.NewStatsInternal()

	view := &HypnoView{
		Ctrl:    Hc.NewController(geom, scene, tooltip),
		Geom:    geom,
		Scene:   scene,
		Screen:  screen,
		Stats:   stats,
		Tooltip: tooltip,
	}

	return view, err
}

// run starts the chart: the one-shot entry transition onto the
// timeline, then the frame loop that the Animator drives.
func (v *HypnoView) run() {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
			debug.PrintStack()
		}
	}()

	slog.Info("Starting HypnoView")
	if err := v.Ctrl.RequestTransition(Mt.Timeline); err != nil {
		slog.Error("Failed to enter timeline", slog.Any("Error", err))
		return
	}
	v.Stats.RecTransition(Mt.Initial.String(), Mt.Timeline.String())

	v.NewAnimator()
	v.Animator.Start()
}

// StartHypnoViewWithConfig is called by main to run the program.
// This also starts up the /metrics endpoint that is populated by prometheus.
func StartHypnoViewWithConfig(c []Hc.ConfigFile) error {
	cd, err := ChartDataFromConfig(c)
	if err != nil {
		return err
	}

	view, err := NewHypnoView(cd)
	if err != nil {
		slog.Error("Could not start HypnoView", slog.Any("Error", err))
		return err
	}
	if cfg := c[0]; cfg.TransitionMS > 0 {
		view.Ctrl.Duration = time.Duration(cfg.TransitionMS) * time.Millisecond
	}

	// Server for stats endpoint
	view.server = &http.Server{
		Addr:    ":8090",
		Handler: view.SetupMux(),
	}

	// Run Hypnoscope
	view.run()

	// Run stats endpoint
	go func() {
		addr := ":8090"
		slog.Info("Starting Hypnoscope stats endpoint...", slog.String("Port", addr))
		if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start stats endpoint", slog.Any("Error", err))
		}
	}()

	view.handleKeyBoardEvent()

	return err
}

// ChartDataFromConfig loads and aggregates the first configured
// night. One config stanza is one visualization session.
func ChartDataFromConfig(c []Hc.ConfigFile) (*Hc.ChartData, error) {
	if len(c) == 0 {
		return nil, errors.New("no session configured")
	}
	cfg := c[0]

	stages, err := Hc.LoadHypnogram(cfg.Source)
	if err != nil {
		slog.Error("Failed to load hypnogram", slog.Any("Error", err))
		return nil, err
	}

	bedtime := time.Now().Add(-time.Duration(len(stages)) * Mt.EpochDuration)
	if cfg.Bedtime > 0 {
		bedtime = time.UnixMilli(cfg.Bedtime)
	}

	return Hc.NewChartData(bedtime, stages)
}

// NewWebView builds a HypnoView with no terminal attached. The
// chart is sized from the config instead of a screen; zero sizing
// fields fall back to the web defaults.
func NewWebView(c []Hc.ConfigFile) (*HypnoView, error) {
	cd, err := ChartDataFromConfig(c)
	if err != nil {
		return nil, err
	}

	cfg := c[0]
	width, rowHeight := cfg.Width, cfg.RowHeight
	if width <= 0 {
		width = 960
	}
	if rowHeight <= 0 {
		rowHeight = 40
	}

	scene := NewSceneChannel()
	tooltip := &TermTooltip{}
	geom := Hc.NewGeometry(cd, width, rowHeight)

	view := &HypnoView{
		Ctrl:    Hc.NewController(geom, scene, tooltip),
		Geom:    geom,
		Scene:   scene,
		Stats:   Mo.NewStatsInternal(),
		Tooltip: tooltip,
	}
	if cfg.TransitionMS > 0 {
		view.Ctrl.Duration = time.Duration(cfg.TransitionMS) * time.Millisecond
	}

	return view, nil
}

// StartWebNoTUI serves the chart over HTTP only: transitions come
// in through the API and the scene goes out over the websocket.
func StartWebNoTUI(c []Hc.ConfigFile) error {
	view, err := NewWebView(c)
	if err != nil {
		return err
	}

	if err := view.Ctrl.RequestTransition(Mt.Timeline); err != nil {
		return err
	}
	view.Stats.RecTransition(Mt.Initial.String(), Mt.Timeline.String())
	view.NewAnimator()
	view.Animator.Start()

	// Server for stats endpoint
	view.server = &http.Server{
		Addr:    ":8090",
		Handler: view.SetupMux(),
	}

	// Run stats endpoint (blocks)
	addr := ":8090"
	slog.Info("Starting Hypnoscope web server...", slog.String("Port", addr))
	if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start web server", slog.Any("Error", err))
		return err
	}

	return nil
}
