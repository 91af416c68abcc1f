package hypnoscope

import (
	"sync"
	"time"
)

// frameInterval is the tween advance rate (~30fps)
const frameInterval = 33 * time.Millisecond

// Animator is the Render Channel's own scheduler: a frame ticker
// that advances the scene's tweens and asks the view to redraw.
// The Controller never blocks on it, suspension only happens
// between frames in here.
type Animator struct {
	View     *HypnoView
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
}

// NewAnimator is a wrapper around the View that manages the frame
// goroutine. They are strongly coupled, one knows about the other.
func (v *HypnoView) NewAnimator() *Animator {
	an := &Animator{
		View: v,
	}
	v.Animator = an
	return an
}

// Start the Animator
func (a *Animator) Start() {
	a.StopChan = make(chan struct{})
	a.Ticker = time.NewTicker(frameInterval)

	a.WG.Add(1)
	go func() {
		defer a.WG.Done()
		defer a.Ticker.Stop()

		for {
			select {
			case <-a.Ticker.C:
				a.View.Scene.Step(time.Now())
				a.View.DrawFrame()
			case <-a.StopChan:
				return
			}
		}
	}()
}

// Stop the Animator
func (a *Animator) Stop() {
	if a.StopChan != nil {
		close(a.StopChan)
		a.WG.Wait()
	}
}

// Restart the Animator
func (a *Animator) Restart() {
	a.Stop()
	a.Start()
}
