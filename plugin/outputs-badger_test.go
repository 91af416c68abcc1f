package plugin_test

import (
	"bytes"
	"testing"
	"time"

	Mp "github.com/oneirix/hypnoscope/plugin"
	Mt "github.com/oneirix/hypnoscope/types"
)

var night = time.Date(2020, 10, 17, 22, 12, 0, 0, time.UTC)

func makeSession(id string, bedtime time.Time) *Mt.Session {
	return &Mt.Session{
		ID:      id,
		Bedtime: bedtime,
		Stages:  []Mt.Stage{Mt.Wake, Mt.N2, Mt.REM},
	}
}

func openTestOutput(t testing.TB, batchSize int) *Mp.BadgerOutput {
	t.Helper()
	bo, err := Mp.NewBadgerOutput(t.TempDir(), batchSize)
	if err != nil {
		t.Fatalf("could not open badger output: %v", err)
	}
	t.Cleanup(func() { bo.Close() })
	return bo
}

func TestSessionKey(t *testing.T) {
	a := makeSession("aaaaaaaa-1111", night)
	b := makeSession("bbbbbbbb-2222", night.Add(time.Hour))

	ka, kb := Mp.SessionKey(a), Mp.SessionKey(b)

	t.Run("Keys sort chronologically", func(t *testing.T) {
		if bytes.Compare(ka, kb) >= 0 {
			t.Errorf("earlier night does not sort first: %x >= %x", ka, kb)
		}
	})

	t.Run("ID is clipped to eight characters", func(t *testing.T) {
		if len(ka) != 16 {
			t.Fatalf("got key length %d, want 16", len(ka))
		}
		if string(ka[8:]) != "aaaaaaaa" {
			t.Errorf("got id part %q, want aaaaaaaa", ka[8:])
		}
	})

	t.Run("Short IDs pad with zero bytes", func(t *testing.T) {
		k := Mp.SessionKey(makeSession("ab", night))
		if string(k[8:10]) != "ab" || k[10] != 0 {
			t.Errorf("short id laid out wrong: %x", k[8:])
		}
	})
}

func TestSessionEncodeDecode(t *testing.T) {
	s := makeSession("night-01", night)

	got, err := Mp.SessionDecode(Mp.SessionEncode(s))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.ID != s.ID || !got.Bedtime.Equal(s.Bedtime) {
		t.Errorf("round trip lost identity: %+v", got)
	}
	if len(got.Stages) != 3 || got.Stages[1] != Mt.N2 {
		t.Errorf("round trip lost stages: %v", got.Stages)
	}

	t.Run("Garbage refused", func(t *testing.T) {
		if _, err := Mp.SessionDecode([]byte("not a gob")); err == nil {
			t.Error("garbage decoded without error")
		}
	})
}

func TestBadgerOutput_WriteAndQuery(t *testing.T) {
	bo := openTestOutput(t, 10)

	for i, id := range []string{"first", "second", "third"} {
		s := makeSession(id, night.Add(time.Duration(i)*24*time.Hour))
		if err := bo.WriteSession(s); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	t.Run("Buffered writes are invisible until Flush", func(t *testing.T) {
		got, err := bo.QueryRange(night.Add(-time.Hour), night.Add(72*time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d sessions before flush, want 0", len(got))
		}
	})

	if err := bo.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	t.Run("Range keeps only matching bedtimes", func(t *testing.T) {
		got, err := bo.QueryRange(night.Add(-time.Hour), night.Add(36*time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d sessions, want 2", len(got))
		}
		if got[0].ID != "first" || got[1].ID != "second" {
			t.Errorf("got %q and %q, want first and second", got[0].ID, got[1].ID)
		}
	})

	t.Run("Empty range comes back empty", func(t *testing.T) {
		got, err := bo.QueryRange(night.Add(100*24*time.Hour), night.Add(101*24*time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d sessions, want 0", len(got))
		}
	})
}

func TestBadgerOutput_BatchSizeTriggersFlush(t *testing.T) {
	bo := openTestOutput(t, 2)

	if err := bo.WriteSession(makeSession("one", night)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := bo.WriteSession(makeSession("two", night.Add(time.Hour))); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// second write hit the batch size, no explicit Flush needed
	got, err := bo.QueryRange(night.Add(-time.Hour), night.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d sessions after batch fill, want 2", len(got))
	}
}

func TestBadgerOutput_WriteBatch(t *testing.T) {
	bo := openTestOutput(t, 10)

	batch := []*Mt.Session{
		makeSession("alpha", night),
		makeSession("beta", night.Add(time.Hour)),
	}
	if err := bo.WriteBatch(batch); err != nil {
		t.Fatalf("batch write failed: %v", err)
	}

	got, err := bo.QueryRange(night.Add(-time.Minute), night.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d sessions, want 2", len(got))
	}
	if bo.Type() != "BadgerDB" {
		t.Errorf("got type %q, want BadgerDB", bo.Type())
	}
}
