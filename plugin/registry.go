package plugin

import "fmt"

// Decoders is a global map of HypnogramDecoder plugins.
var Decoders = map[string]func() HypnogramDecoder{
	"json_epochs": func() HypnogramDecoder {
		return &JSONEpochsDecoder{}
	},
	"stage_lines": func() HypnogramDecoder {
		return &StageLinesDecoder{}
	},
}

func DecoderLookup(name string) (HypnogramDecoder, error) {
	factory, ok := Decoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown decoder: %s", name)
	}
	return factory(), nil
}
