package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	Hc "github.com/oneirix/hypnoscope/chart"
	Hd "github.com/oneirix/hypnoscope/display"
	Mo "github.com/oneirix/hypnoscope/obvy"
	Hp "github.com/oneirix/hypnoscope/plugin"
	Mt "github.com/oneirix/hypnoscope/types"
)

func main() {
	// .env is optional, a real environment always wins
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded .env")
	}

	// Traces only leave the process when an endpoint is configured
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		if Hc.FillEnvVar("HYPNOSCOPE_TRACER") == "grafana" {
			tp, err := Mo.InitOTelGRF()
			if err != nil {
				slog.Error("Could not configure OpenTelemetry", slog.Any("Error", err))
			} else {
				defer tp.Shutdown(context.Background())
			}
		} else {
			shutdown, err := Mo.InitOTelHNY()
			if err != nil {
				slog.Error("Could not configure OpenTelemetry", slog.Any("Error", err))
			} else {
				defer shutdown()
			}
		}
	}

	configFile := Hc.FillEnvVar("HYPNOSCOPE_CONFIG")
	if configFile == "ENOENT" {
		configFile = "hypnoscope.json"
	}

	config, err := Hc.LoadConfigFileName(configFile)
	if err != nil || len(config) == 0 {
		slog.Error("Could not load config", slog.String("file", configFile), slog.Any("Error", err))
		os.Exit(1)
	}

	archiveSession(config[0])

	if Hc.FillEnvVar("HYPNOSCOPE_WEB") == "true" {
		if err := Hd.StartWebNoTUI(config); err != nil {
			slog.Error("Problem starting web server", slog.Any("Error", err))
			os.Exit(1)
		}
		return
	}

	if err := Hd.StartHypnoViewWithConfig(config); err != nil {
		slog.Error("Problem starting HypnoView", slog.Any("Error", err))
		panic("Failed to start hypno view")
	}
}

// archiveSession stores the loaded night in the session database,
// keyed by bedtime so nights sort chronologically. Skipped unless
// HYPNOSCOPE_DB points at a path.
func archiveSession(cfg Hc.ConfigFile) {
	dbPath := Hc.FillEnvVar("HYPNOSCOPE_DB")
	if dbPath == "ENOENT" {
		return
	}

	stages, err := Hc.LoadHypnogram(cfg.Source)
	if err != nil {
		slog.Error("Could not load hypnogram for archive", slog.Any("Error", err))
		return
	}

	out, err := Hp.NewBadgerOutput(dbPath, 8)
	if err != nil {
		slog.Error("Could not open session database", slog.Any("Error", err))
		return
	}
	defer out.Close()

	bedtime := time.Now().Add(-time.Duration(len(stages)) * Mt.EpochDuration)
	if cfg.Bedtime > 0 {
		bedtime = time.UnixMilli(cfg.Bedtime)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	session := &Mt.Session{
		ID:      id,
		Bedtime: bedtime,
		Stages:  stages,
	}
	if err := out.WriteSession(session); err != nil {
		slog.Error("Could not archive session", slog.Any("Error", err))
		return
	}

	slog.Info("Session archived",
		slog.String("ID", session.ID),
		slog.Int("epochs", len(stages)))
}
