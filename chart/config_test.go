package hypnoscope_test

import (
	"os"
	"testing"

	Hc "github.com/oneirix/hypnoscope/chart"
)

func createTempFile(t testing.TB, contents string) *os.File {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "hypnoscope-*.json")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("could not write temp file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLoadConfigFileName(t *testing.T) {
	t.Run("Well formed config", func(t *testing.T) {
		f := createTempFile(t, `[
			{
				"id": "night-01",
				"source": "testdata/night.csv",
				"bedtime": 1602972720000,
				"width": 960,
				"rowHeight": 40,
				"transitionMs": 500
			}
		]`)

		configs, err := Hc.LoadConfigFileName(f.Name())
		assertError(t, err, nil)
		assertInt(t, len(configs), 1)

		cfg := configs[0]
		assertString(t, cfg.ID, "night-01")
		assertString(t, cfg.Source, "testdata/night.csv")
		if cfg.Bedtime != 1602972720000 {
			t.Errorf("got bedtime %d, want 1602972720000", cfg.Bedtime)
		}
		assertFloat(t, cfg.Width, 960)
		assertFloat(t, cfg.RowHeight, 40)
		assertInt(t, cfg.TransitionMS, 500)
	})

	t.Run("Several sessions in one file", func(t *testing.T) {
		f := createTempFile(t, `[
			{"id": "a", "source": "a.csv"},
			{"id": "b", "source": "b.csv"}
		]`)

		configs, err := Hc.LoadConfigFileName(f.Name())
		assertError(t, err, nil)
		assertInt(t, len(configs), 2)
		assertString(t, configs[1].ID, "b")
	})

	t.Run("Empty file refused", func(t *testing.T) {
		f := createTempFile(t, "")
		_, err := Hc.LoadConfigFileName(f.Name())
		assertGotError(t, err)
	})

	t.Run("Malformed JSON refused", func(t *testing.T) {
		f := createTempFile(t, `{"id": "not-a-list"`)
		_, err := Hc.LoadConfigFileName(f.Name())
		assertGotError(t, err)
	})

	t.Run("Missing file refused", func(t *testing.T) {
		_, err := Hc.LoadConfigFileName("no-such-config.json")
		assertGotError(t, err)
	})
}
