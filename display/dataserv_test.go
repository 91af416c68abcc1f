package hypnoscope_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	Hc "github.com/oneirix/hypnoscope/chart"
	Hd "github.com/oneirix/hypnoscope/display"
	Mo "github.com/oneirix/hypnoscope/obvy"
	Mt "github.com/oneirix/hypnoscope/types"
)

// makeHeadlessView builds a HypnoView without a terminal attached,
// entered onto the timeline like the web-only runner does
func makeHeadlessView(t testing.TB) *Hd.HypnoView {
	t.Helper()

	g := makeGeometry(t, testNight()...)
	scene := Hd.NewSceneChannel()
	tooltip := &Hd.TermTooltip{}

	view := &Hd.HypnoView{
		Ctrl:    Hc.NewController(g, scene, tooltip),
		Geom:    g,
		Scene:   scene,
		Stats:   Mo.NewStatsInternal(),
		Tooltip: tooltip,
	}
	if err := view.Ctrl.RequestTransition(Mt.Timeline); err != nil {
		t.Fatalf("could not enter timeline: %v", err)
	}
	return view
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got status %d, want %d", got, want)
	}
}

func decodeBody(t *testing.T, body io.Reader, into any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(into); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
}

func TestVersionHandler(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/version")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertStatus(t, resp.StatusCode, http.StatusOK)

	var got map[string]string
	decodeBody(t, resp.Body, &got)
	if got["version"] != Hd.Version {
		t.Errorf("got version %q, want %q", got["version"], Hd.Version)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertStatus(t, resp.StatusCode, http.StatusOK)
}

func TestAPITrafficIsCounted(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/version")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	scrape, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer scrape.Body.Close()

	body, err := io.ReadAll(scrape.Body)
	if err != nil {
		t.Fatalf("could not read scrape: %v", err)
	}
	want := `hypnoscope_http_requests_total{method="GET",status="200"}`
	if !strings.Contains(string(body), want) {
		t.Errorf("scrape missing %q after an /api request", want)
	}
}

func TestWebsocketRefusesPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertStatus(t, resp.StatusCode, http.StatusBadRequest)
}

func TestChartDataHandler(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chart-data")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assertStatus(t, resp.StatusCode, http.StatusOK)

	var got struct {
		Bedtime     int64 `json:"bedtime"`
		Epochs      int   `json:"epochs"`
		Stages      []struct {
			Stage      string  `json:"stage"`
			Proportion float64 `json:"proportion"`
			Seconds    int64   `json:"seconds"`
		} `json:"stages"`
		Annotations []struct {
			Stage string `json:"stage"`
		} `json:"annotations"`
	}
	decodeBody(t, resp.Body, &got)

	if got.Bedtime != bedtime.UnixMilli() {
		t.Errorf("got bedtime %d, want %d", got.Bedtime, bedtime.UnixMilli())
	}
	if got.Epochs != 5 {
		t.Errorf("got %d epochs, want 5", got.Epochs)
	}
	if len(got.Stages) != Mt.StageCount {
		t.Fatalf("got %d stage entries, want %d", len(got.Stages), Mt.StageCount)
	}
	if len(got.Annotations) != 5 {
		t.Errorf("got %d annotations, want 5", len(got.Annotations))
	}

	shares := make(map[string]float64)
	for _, s := range got.Stages {
		shares[s.Stage] = s.Proportion
	}
	for stage, want := range map[string]float64{"W": 0.4, "N2": 0.4, "REM": 0.2, "N1": 0, "N3": 0} {
		if shares[stage] != want {
			t.Errorf("stage %s share %v, want %v", stage, shares[stage], want)
		}
	}
}

func TestReportHandler(t *testing.T) {
	srv := httptest.NewServer(makeHeadlessView(t).SetupMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/report")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assertStatus(t, resp.StatusCode, http.StatusOK)

	var got Hc.Report
	decodeBody(t, resp.Body, &got)

	// night is W N2 W REM N2: latency one epoch, three stage shifts
	// before the cut-off plus one more because the night ends asleep
	if got.SleepLatency == nil || *got.SleepLatency != 30 {
		t.Errorf("got latency %v, want 30", got.SleepLatency)
	}
	if got.StageShifts != 5 {
		t.Errorf("got %d shifts, want 5", got.StageShifts)
	}
	if got.WTime != 60 || got.N2Time != 60 || got.REMTime != 30 {
		t.Errorf("got stage times W=%d N2=%d REM=%d, want 60/60/30",
			got.WTime, got.N2Time, got.REMTime)
	}
}

func TestViewHandler(t *testing.T) {
	view := makeHeadlessView(t)
	srv := httptest.NewServer(view.SetupMux())
	defer srv.Close()

	postView := func(t *testing.T, to string) *http.Response {
		t.Helper()
		body, _ := json.Marshal(map[string]string{"to": to})
		resp, err := http.Post(srv.URL+"/api/view", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("GET reports the current view", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/view")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var got map[string]string
		decodeBody(t, resp.Body, &got)
		if got["view"] != "timeline" {
			t.Errorf("got view %q, want timeline", got["view"])
		}
	})

	t.Run("POST to an adjacent view succeeds", func(t *testing.T) {
		resp := postView(t, "instance")
		assertStatus(t, resp.StatusCode, http.StatusOK)

		var got map[string]string
		decodeBody(t, resp.Body, &got)
		if got["view"] != "instance" {
			t.Errorf("got view %q, want instance", got["view"])
		}
		if view.Ctrl.CurrentView() != Mt.Instance {
			t.Errorf("controller sits on %s, want instance", view.Ctrl.CurrentView())
		}
	})

	t.Run("POST to a non-adjacent view conflicts", func(t *testing.T) {
		resp := postView(t, "stacked-bar-chart")
		assertStatus(t, resp.StatusCode, http.StatusConflict)
		if view.Ctrl.CurrentView() != Mt.Instance {
			t.Errorf("refused request still moved the view to %s", view.Ctrl.CurrentView())
		}
	})

	t.Run("POST with an unknown view name is a bad request", func(t *testing.T) {
		resp := postView(t, "pie-chart")
		assertStatus(t, resp.StatusCode, http.StatusBadRequest)
	})

	t.Run("POST with a broken body is a bad request", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/view", "application/json", bytes.NewReader([]byte("{")))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		assertStatus(t, resp.StatusCode, http.StatusBadRequest)
	})
}

func TestParseViewState(t *testing.T) {
	for name, want := range map[string]Mt.ViewState{
		"timeline":          Mt.Timeline,
		"instance":          Mt.Instance,
		"bar-chart":         Mt.BarChart,
		"stacked-bar-chart": Mt.StackedBarChart,
	} {
		got, err := Hd.ParseViewState(name)
		if err != nil {
			t.Errorf("%q refused: %v", name, err)
		}
		if got != want {
			t.Errorf("%q parsed as %s, want %s", name, got, want)
		}
	}

	t.Run("Initial is not addressable over the wire", func(t *testing.T) {
		if _, err := Hd.ParseViewState("initial"); err == nil {
			t.Error("initial accepted, want an error")
		}
	})
}
