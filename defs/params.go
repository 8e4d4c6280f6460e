package defs

import (
	"time"
)

var (
	// BufferDefaultCapacity defines how many entries a session buffer keeps before evicting the oldest one
	BufferDefaultCapacity = 1000

	// ReframerMaxLineBytes defines the maximum length of one NDJSON line
	//
	// Longer lines are discarded up to their terminating newline and reported as protocol errors
	ReframerMaxLineBytes = 1 * 1024 * 1024

	// ReframerMinBufferBytes defines the minimum size of the preallocated reframer buffer
	//
	// The actual buffer is at least twice of ReframerMaxLineBytes, so that a partial line of maximum length can always
	// be followed by another read
	ReframerMinBufferBytes = 64 * 1024

	// SourceConnectTimeout is for establishing a connection and receiving response headers from a stream producer
	//
	// There is no timeout on the response body: a stalled stream blocks its session until cancelled
	SourceConnectTimeout = 30 * time.Second

	// ProbeTimeout is the overall timeout of a one-shot connection test
	ProbeTimeout = 10 * time.Second

	// SessionStopTimeout defines how long to wait for a cancelled session to come to stop
	//
	// It's not supposed to be reached since cancellation aborts any in-flight read, and should be treated as a bug
	SessionStopTimeout = 10 * time.Second

	// RelayWriteTimeout defines the timeout of writing one update to a WebSocket subscriber
	RelayWriteTimeout = 10 * time.Second
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with very short timeout
func EnableTestMode() {
	SourceConnectTimeout = 1 * time.Second
	ProbeTimeout = 1 * time.Second
	SessionStopTimeout = 2 * time.Second
	RelayWriteTimeout = 1 * time.Second
}
