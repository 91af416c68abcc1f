package hypnoscope

import (
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// Report is the per-night sleep metrics summary.
// Durations are whole seconds, onsets and offsets Unix seconds;
// pointer fields are nil (JSON null) when the subject never slept
// or never reached the stage in question.
type Report struct {
	SleepOnset           *int64  `json:"sleepOnset"`
	SleepOffset          *int64  `json:"sleepOffset"`
	SleepLatency         *int64  `json:"sleepLatency"`
	REMLatency           *int64  `json:"remLatency"`
	REMOnset             *int64  `json:"remOnset"`
	Awakenings           int     `json:"awakenings"`
	StageShifts          int     `json:"stageShifts"`
	SleepTime            int64   `json:"sleepTime"`
	WASO                 int64   `json:"WASO"`
	SleepEfficiency      float64 `json:"sleepEfficiency"`
	EfficientSleepTime   int64   `json:"efficientSleepTime"`
	WakeAfterSleepOffset int64   `json:"wakeAfterSleepOffset"`
	WTime                int64   `json:"WTime"`
	N1Time               int64   `json:"N1Time"`
	N2Time               int64   `json:"N2Time"`
	N3Time               int64   `json:"N3Time"`
	REMTime              int64   `json:"REMTime"`
}

// NewReport computes the summary metrics for one classified night.
// Latencies count from bedtime, REM latency from sleep onset.
func NewReport(bedtime time.Time, stages []Mt.Stage) *Report {
	epochSec := int64(Mt.EpochDuration.Seconds())
	bed := bedtime.Unix()

	sleepIdx := make([]int, 0, len(stages))
	for i, s := range stages {
		if s != Mt.Wake {
			sleepIdx = append(sleepIdx, i)
		}
	}
	hasSlept := len(sleepIdx) > 0
	isLastStageSleep := len(stages) > 0 && stages[len(stages)-1] != Mt.Wake

	r := &Report{}

	// per-stage totals always come out, slept or not
	counts := make(map[Mt.Stage]int64)
	for _, s := range stages {
		counts[s]++
	}
	r.WTime = counts[Mt.Wake] * epochSec
	r.N1Time = counts[Mt.N1] * epochSec
	r.N2Time = counts[Mt.N2] * epochSec
	r.N3Time = counts[Mt.N3] * epochSec
	r.REMTime = counts[Mt.REM] * epochSec

	if len(stages) > 0 {
		r.SleepEfficiency = float64(len(sleepIdx)) / float64(len(stages))
	}

	if !hasSlept {
		return r
	}

	latency := int64(sleepIdx[0]) * epochSec
	r.SleepLatency = &latency

	onset := bed + latency
	r.SleepOnset = &onset

	offset := bed + int64(sleepIdx[len(sleepIdx)-1]+1)*epochSec
	r.SleepOffset = &offset

	r.SleepTime = offset - onset
	r.EfficientSleepTime = int64(len(sleepIdx)) * epochSec
	r.WASO = r.SleepTime - r.EfficientSleepTime

	if !isLastStageSleep {
		r.WakeAfterSleepOffset = int64(len(stages)-sleepIdx[len(sleepIdx)-1]-1) * epochSec
	}

	for i, s := range stages {
		if s == Mt.REM {
			remLatency := int64(i)*epochSec - latency
			r.REMLatency = &remLatency
			remOnset := bed + remLatency
			r.REMOnset = &remOnset
			break
		}
	}

	// stage shifts count every change between consecutive epochs,
	// awakenings only the sleep-to-wake ones. A night that ends
	// mid-sleep counts the cut-off as one more of each.
	for i := 1; i < len(stages); i++ {
		if stages[i] != stages[i-1] {
			r.StageShifts++
			if stages[i] == Mt.Wake {
				r.Awakenings++
			}
		}
	}
	if isLastStageSleep {
		r.StageShifts++
		r.Awakenings++
	}

	return r
}
