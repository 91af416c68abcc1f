package plugin

/*

	The Adapter sits aside /hypnoscope/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Mt "github.com/oneirix/hypnoscope/types"
)

// HypnogramDecoder turns one classifier payload into the per-epoch
// stage sequence. Each decoder owns one wire format; the Type is a
// unique ID used for registry lookup.
type HypnogramDecoder interface {
	Decode(data []byte) ([]Mt.Stage, error)
	Type() string
}

// SessionOutput can be used to define a place for completed nights
// to go, session-by-session or in batches if supported by the
// output type.
type SessionOutput interface {
	WriteSession(s *Mt.Session) error                       // Write singleton session data
	WriteBatch(ss []*Mt.Session) error                      // Write batches of sessions
	QueryRange(start, end time.Time) ([]*Mt.Session, error) // Time range query tool
	Flush() error                                           // Flush any buffered data
	Close() error                                           // Close the adapter and release resources
	Type() string                                           // ID for output
}
