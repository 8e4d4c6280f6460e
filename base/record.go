package base

import (
	"time"
)

// Record is one fully reframed JSON object from a stream
//
// Either Values or Named is set, depending on whether the producer sent the payload as an ordered array or as an
// object keyed by field names.
type Record struct {
	PanelID   int64
	RefID     string
	Legacy    bool               // bare {timestamp, value} pair, without correlation identifiers
	Timestamp time.Time          // zero if not supplied by producer
	Values    []float64          // ordered payload
	Named     map[string]float64 // payload keyed by field name
}

// BufferEntry is one row of a session buffer: a timestamp and values ordered by the query fields
type BufferEntry struct {
	Timestamp time.Time
	Values    []float64
}
