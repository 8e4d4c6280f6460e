package base

import (
	"errors"
)

var (
	// ErrTransport means the connection could not be opened or failed in the middle of a stream
	//
	// Sessions fail on transport errors and are not retried
	ErrTransport = errors.New("transport error")

	// ErrParse means one line is not valid JSON or not a recognized record; the line is skipped
	ErrParse = errors.New("parse error")

	// ErrSchemaMismatch means a record's values don't match the configured fields; the entry is dropped
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrProtocol means the stream violates the NDJSON framing, e.g. unterminated last line or oversized line
	ErrProtocol = errors.New("protocol error")
)

// ErrorReporter receives errors which are handled locally and don't stop a session
type ErrorReporter func(key SessionKey, err error)
