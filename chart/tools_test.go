package hypnoscope

import (
	"testing"
	"time"
)

func TestFillEnvVar(t *testing.T) {
	t.Run("Set variable comes back", func(t *testing.T) {
		t.Setenv("HYPNOSCOPE_TOOLS_TEST", "night-owl")
		if got := FillEnvVar("HYPNOSCOPE_TOOLS_TEST"); got != "night-owl" {
			t.Errorf("got %q, want %q", got, "night-owl")
		}
	})

	t.Run("Unset variable falls back", func(t *testing.T) {
		if got := FillEnvVar("HYPNOSCOPE_TOOLS_UNSET"); got != "ENOENT" {
			t.Errorf("got %q, want %q", got, "ENOENT")
		}
	})
}

func TestFillEnvVarInt(t *testing.T) {
	t.Run("Parsable integer", func(t *testing.T) {
		t.Setenv("HYPNOSCOPE_TOOLS_INT", "8090")
		if got := FillEnvVarInt("HYPNOSCOPE_TOOLS_INT", 1); got != 8090 {
			t.Errorf("got %d, want 8090", got)
		}
	})

	t.Run("Unset falls back to default", func(t *testing.T) {
		if got := FillEnvVarInt("HYPNOSCOPE_TOOLS_INT_UNSET", 42); got != 42 {
			t.Errorf("got %d, want 42", got)
		}
	})

	t.Run("Garbage falls back to default", func(t *testing.T) {
		t.Setenv("HYPNOSCOPE_TOOLS_INT", "owl")
		if got := FillEnvVarInt("HYPNOSCOPE_TOOLS_INT", 42); got != 42 {
			t.Errorf("got %d, want 42", got)
		}
	})
}

func TestFloatPrecise(t *testing.T) {
	cases := []struct {
		in     float64
		places int
		want   float64
	}{
		{0.123456, 2, 0.12},
		{0.4, 2, 0.4},
		{39.996, 2, 40},
		{2.0 / 3.0, 4, 0.6667},
	}
	for _, c := range cases {
		if got := FloatPrecise(c.in, c.places); got != c.want {
			t.Errorf("FloatPrecise(%v, %d) = %v, want %v", c.in, c.places, got, c.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Minute, "00:01:00"},
		{90 * time.Second, "00:01:30"},
		{8*time.Hour + 3*time.Minute + 5*time.Second, "08:03:05"},
		{-time.Minute, "00:00:00"},
	}
	for _, c := range cases {
		if got := FormatClock(c.in); got != c.want {
			t.Errorf("FormatClock(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
