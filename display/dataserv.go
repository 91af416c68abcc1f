package hypnoscope

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	Hc "github.com/oneirix/hypnoscope/chart"
	Mt "github.com/oneirix/hypnoscope/types"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket specialized for D3.js UI
// - Version for programmatic use
// - Chart data, sleep report, and view control for UI feedback
func (v *HypnoView) SetupMux() http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	// Every /api route counts toward the request metrics
	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.HandleFunc("/version", v.VersionHandler)
	api.HandleFunc("/chart-data", v.ChartDataHandler)
	api.HandleFunc("/report", v.ReportHandler)
	api.HandleFunc("/view", v.ViewHandler)

	// Static files for D3 frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./web/")))

	return otelhttp.NewHandler(r, "hypnoscope-dataserv")
}

var Version = "dev"

func (v *HypnoView) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// ChartDataHandler serves the per-stage shares and annotations of
// the current night, the way the D3 frontend consumes them
func (v *HypnoView) ChartDataHandler(w http.ResponseWriter, r *http.Request) {
	type AnnotationData struct {
		Stage      string  `json:"stage"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Proportion float64 `json:"proportion"`
	}
	type StageData struct {
		Stage      string  `json:"stage"`
		Proportion float64 `json:"proportion"`
		Seconds    int64   `json:"seconds"`
	}

	cd := v.Geom.Data

	var stages []StageData
	for _, s := range Mt.Stages {
		stages = append(stages, StageData{
			Stage:      s.String(),
			Proportion: Hc.FloatPrecise(cd.StageProportions[s], 4),
			Seconds:    int64(cd.StageTime(s).Seconds()),
		})
	}

	var annotations []AnnotationData
	for _, a := range cd.Annotations {
		annotations = append(annotations, AnnotationData{
			Stage:      a.Stage.String(),
			Start:      a.Start.UnixMilli(),
			End:        a.End.UnixMilli(),
			Proportion: a.Proportion,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bedtime":     cd.Bedtime.UnixMilli(),
		"epochs":      len(cd.Epochs),
		"stages":      stages,
		"annotations": annotations,
	})
}

// ReportHandler serves the sleep metrics summary for the night
func (v *HypnoView) ReportHandler(w http.ResponseWriter, r *http.Request) {
	cd := v.Geom.Data

	stages := make([]Mt.Stage, len(cd.Epochs))
	for i, e := range cd.Epochs {
		stages[i] = e.Stage
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Hc.NewReport(cd.Bedtime, stages))
}

// ViewHandler reads the current view (GET) or requests a transition
// to an adjacent one (POST {"to": "instance"}). A refused request
// comes back 409 with the state machine's reason.
func (v *HypnoView) ViewHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		json.NewEncoder(w).Encode(map[string]string{"view": v.Ctrl.CurrentView().String()})
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	target, err := ParseViewState(req.To)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	from := v.Ctrl.CurrentView()
	if err := v.Ctrl.RequestTransition(target); err != nil {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	v.Stats.RecTransition(from.String(), target.String())
	json.NewEncoder(w).Encode(map[string]string{"view": target.String()})
}

// ParseViewState maps the wire name back onto the ViewState enum
func ParseViewState(name string) (Mt.ViewState, error) {
	for _, vs := range []Mt.ViewState{Mt.Timeline, Mt.Instance, Mt.BarChart, Mt.StackedBarChart} {
		if vs.String() == name {
			return vs, nil
		}
	}
	return Mt.Initial, fmt.Errorf("unknown view %q", name)
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *HypnoView) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}
