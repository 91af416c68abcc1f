package hypnoscope_test

import (
	"testing"
	"time"

	Hc "github.com/oneirix/hypnoscope/chart"
	Mt "github.com/oneirix/hypnoscope/types"
)

func TestAnimatorSettlesTransitions(t *testing.T) {
	view := makeHeadlessView(t)
	view.Ctrl.Duration = 20 * time.Millisecond

	view.NewAnimator()
	view.Animator.Start()
	defer view.Animator.Stop()

	if err := view.Ctrl.RequestTransition(Mt.Instance); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for view.Scene.Animating() {
		select {
		case <-deadline:
			t.Fatal("scene never settled")
		case <-time.After(10 * time.Millisecond):
		}
	}

	snap := view.Scene.Snap()
	for idx := range view.Geom.Data.Annotations {
		want := view.Geom.InstanceRect(idx)
		got := findRect(t, snap, Hc.AnnotationKey(idx))
		assertAttr(t, got.X, want.X)
		assertAttr(t, got.Y, want.Y)
	}
}

func TestAnimatorRestart(t *testing.T) {
	view := makeHeadlessView(t)

	view.NewAnimator()
	view.Animator.Start()
	view.Animator.Restart()
	view.Animator.Stop()
}
