package base

import (
	"context"
)

// Connection represents an open stream from a producer
type Connection interface {

	// Read reads the next chunk of the stream, blocking until data, end of stream (io.EOF) or error
	Read(p []byte) (int, error)

	// Close aborts any in-flight Read and releases the connection
	//
	// Close may be called more than once and/or simultaneously with Read. Implementations must handle it silently.
	Close()
}

// OpenConnectionFunc opens a stream for the given query
//
// The context is cancelled when the session is cancelled; implementations should abort connecting on cancellation.
type OpenConnectionFunc func(ctx context.Context, desc QueryDescriptor) (Connection, error)

// ConnectionStatus is the result of a one-shot reachability check
type ConnectionStatus struct {
	Status  string `json:"status"` // StatusSuccess or StatusFailure
	Message string `json:"message"`
}

// Values of ConnectionStatus.Status
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)
