package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/relex/streamchart/base"
	"github.com/vmihailenco/msgpack/v4"
)

// Supported output formats
const (
	FormatJSON    = "json"    // NDJSON, one message per line
	FormatMsgpack = "msgpack" // concatenated msgpack maps
)

// UpdateWriter writes updates as messages to a stream
//
// UpdateWriter is not thread-safe.
type UpdateWriter struct {
	buffered *bufio.Writer
	encode   func(msg Message) error
}

// VerifyFormat checks whether the format is supported
func VerifyFormat(format string) error {
	switch format {
	case FormatJSON, FormatMsgpack:
		return nil
	default:
		return fmt.Errorf("unsupported format '%s'", format)
	}
}

// NewUpdateWriter creates an UpdateWriter for the given format; empty format means JSON
func NewUpdateWriter(format string, writer io.Writer) (*UpdateWriter, error) {
	buffered := bufio.NewWriter(writer)
	uw := &UpdateWriter{buffered: buffered}
	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(buffered)
		encoder.SetEscapeHTML(false)
		uw.encode = func(msg Message) error { return encoder.Encode(msg) }
	case FormatMsgpack:
		encoder := msgpack.NewEncoder(buffered)
		uw.encode = func(msg Message) error { return encoder.Encode(msg) }
	default:
		return nil, VerifyFormat(format)
	}
	return uw, nil
}

// Write encodes and flushes one update
func (uw *UpdateWriter) Write(update base.Update) error {
	if err := uw.encode(NewMessage(update)); err != nil {
		return fmt.Errorf("failed to encode update of %s: %w", update.Key, err)
	}
	return uw.buffered.Flush()
}
