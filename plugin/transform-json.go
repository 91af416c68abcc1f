package plugin

/*
	JSONEpochsDecoder

	Reads the classifier's JSON response shape:
	{"epochs": [{"stage": "N2"}, ...]}
	or the compact {"stages": ["W", "N1", ...]}

	~~~ Plugin Reference Implementation ~~~
*/

import (
	"encoding/json"
	"fmt"
	"strings"

	Mt "github.com/oneirix/hypnoscope/types"
)

type JSONEpochsDecoder struct{}

type jsonEpoch struct {
	Stage string `json:"stage"`
}

type jsonNight struct {
	Epochs []jsonEpoch `json:"epochs"`
	Stages []string    `json:"stages"`
}

// Decode accepts either payload shape; the compact stage list wins
// when both are present.
func (d *JSONEpochsDecoder) Decode(data []byte) ([]Mt.Stage, error) {
	var night jsonNight
	if err := json.Unmarshal(data, &night); err != nil {
		return nil, fmt.Errorf("epoch payload error: %w", err)
	}

	tokens := night.Stages
	if len(tokens) == 0 {
		tokens = make([]string, len(night.Epochs))
		for i, e := range night.Epochs {
			tokens[i] = e.Stage
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("epoch payload holds no stages")
	}

	stages := make([]Mt.Stage, len(tokens))
	for i, tok := range tokens {
		s, err := ParseStageToken(tok)
		if err != nil {
			return nil, err
		}
		stages[i] = s
	}
	return stages, nil
}

func (d *JSONEpochsDecoder) Type() string { return "json_epochs" }

// StageLinesDecoder reads the plain-text form: one stage token per
// line, blanks and #-comments skipped. Lines may also be
// "index,stage" pairs, the index is ignored.
type StageLinesDecoder struct{}

func (d *StageLinesDecoder) Decode(data []byte) ([]Mt.Stage, error) {
	var stages []Mt.Stage
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// "index,stage" lines keep only the stage column
		if pos := strings.LastIndex(line, ","); pos != -1 {
			line = line[pos+1:]
		}

		s, err := ParseStageToken(line)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("hypnogram holds no stages")
	}
	return stages, nil
}

func (d *StageLinesDecoder) Type() string { return "stage_lines" }

// ParseStageToken maps a classifier stage token onto the Stage
// enum. Both the short AASM labels and the plain numerals are
// accepted. Shared by every decoder, this is the one token table.
func ParseStageToken(token string) (Mt.Stage, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "W", "WAKE", "0":
		return Mt.Wake, nil
	case "N1", "1":
		return Mt.N1, nil
	case "N2", "2":
		return Mt.N2, nil
	case "N3", "3":
		return Mt.N3, nil
	case "REM", "R", "4":
		return Mt.REM, nil
	default:
		return Mt.Wake, fmt.Errorf("unknown sleep stage %q", token)
	}
}
