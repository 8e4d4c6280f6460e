// Package reframe reconstructs NDJSON records from a byte stream whose chunk boundaries don't align with lines
package reframe

import (
	"bytes"
	"fmt"

	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/util"
)

// ReadFunc reads the next chunk of stream into p, like io.Reader.Read
type ReadFunc func(p []byte) (n int, err error)

// RecordConsumer receives each record parsed from complete lines, in stream order
type RecordConsumer func(record base.Record)

// Reframer keeps partial lines on a preallocated buffer and parses every complete line into records
//
// Incoming bytes are appended after the carry-over from previous chunks. After each append the buffer is scanned from
// the position where the last scan stopped, so a line split over many chunks is only searched once. Complete lines are
// consumed in place and the unfinished tail is relocated to the beginning of the buffer.
//
// A Reframer is not thread-safe. It should be owned by the goroutine reading the stream.
type Reframer struct {
	consumeRecord RecordConsumer
	reportError   func(err error)
	maxLineLength int    // lines longer than this are discarded
	buffer        []byte // preallocated buffer, at least twice of maxLineLength
	offsetSearch  int    // point to where the next newline search starts, always within the last unfinished line
	offsetAppend  int    // point to end of buffered data
	discarding    bool   // true while skipping the remainder of an oversized line
	lineNumber    int    // number of complete lines seen, for error messages
}

// NewReframer creates a Reframer
//
// consume is called for every record of every valid line. report is called for every malformed or oversized line and
// for an unterminated fragment at the end of stream; such lines are skipped and the stream continues.
func NewReframer(maxLineLength int, minBufferSize int, consume RecordConsumer, report func(err error)) *Reframer {
	if maxLineLength <= 0 {
		panic(fmt.Sprintf("invalid maxLineLength: %d", maxLineLength))
	}
	return &Reframer{
		consumeRecord: consume,
		reportError:   report,
		maxLineLength: maxLineLength,
		buffer:        make([]byte, util.MaxInt(minBufferSize, maxLineLength*2)),
		offsetSearch:  0,
		offsetAppend:  0,
		discarding:    false,
		lineNumber:    0,
	}
}

// Read reads the next chunk directly into buffer and consumes all complete lines
//
// It returns the error from read as-is, after consuming any bytes read along with the error.
func (rf *Reframer) Read(read ReadFunc) error {
	n, err := read(rf.buffer[rf.offsetAppend:])
	if n > 0 {
		rf.processBuffer(rf.offsetAppend + n)
	}
	return err
}

// Feed appends the given chunk and consumes all complete lines
//
// Chunks larger than the free space of buffer are processed in pieces.
func (rf *Reframer) Feed(chunk []byte) {
	for len(chunk) > 0 {
		n := copy(rf.buffer[rf.offsetAppend:], chunk)
		chunk = chunk[n:]
		rf.processBuffer(rf.offsetAppend + n)
	}
}

// End marks the end of stream
//
// A non-empty unterminated fragment is reported as protocol error and discarded. The Reframer is reset and may be
// reused for another stream.
func (rf *Reframer) End() {
	fragment := bytes.TrimSpace(rf.buffer[:rf.offsetAppend])
	if len(fragment) > 0 && !rf.discarding {
		rf.reportError(fmt.Errorf("%w: unterminated last line (%d bytes) at end of stream", base.ErrProtocol, len(fragment)))
	}
	rf.Reset()
}

// Reset discards all buffered data
func (rf *Reframer) Reset() {
	rf.offsetAppend = 0
	rf.offsetSearch = 0
	rf.discarding = false
}

// Pending returns the unterminated data currently buffered
func (rf *Reframer) Pending() []byte {
	return rf.buffer[:rf.offsetAppend]
}

func (rf *Reframer) processBuffer(bufferEnd int) {
	lineStart := 0
	searchStart := rf.offsetSearch
	buffer := rf.buffer[:bufferEnd]
	for {
		nextEndRel := bytes.IndexByte(buffer[searchStart:], '\n')
		if nextEndRel == -1 {
			break
		}
		nextEnd := nextEndRel + searchStart
		switch {
		case rf.discarding:
			rf.discarding = false // the oversized line ends here and has been reported already
		case nextEnd-lineStart > rf.maxLineLength:
			rf.reportOversizedLine()
		default:
			rf.consumeLine(buffer[lineStart:nextEnd])
		}
		rf.lineNumber++
		lineStart = nextEnd + 1
		searchStart = lineStart
	}
	// relocate unfinished line to the beginning
	if lineStart > 0 {
		rf.offsetAppend = copy(rf.buffer, buffer[lineStart:])
	} else {
		rf.offsetAppend = bufferEnd
	}
	rf.offsetSearch = rf.offsetAppend
	rf.checkOverflow()
}

// checkOverflow drops the unfinished line if it's already longer than allowed, to keep room for the next read
func (rf *Reframer) checkOverflow() {
	if rf.offsetAppend <= rf.maxLineLength {
		return
	}
	if !rf.discarding {
		rf.reportOversizedLine()
		rf.discarding = true
	}
	rf.offsetAppend = 0
	rf.offsetSearch = 0
}

func (rf *Reframer) reportOversizedLine() {
	rf.reportError(fmt.Errorf("%w: line %d exceeds %d bytes", base.ErrProtocol, rf.lineNumber+1, rf.maxLineLength))
}

func (rf *Reframer) consumeLine(line []byte) {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	records, err := ParseLine(line)
	if err != nil {
		rf.reportError(fmt.Errorf("line %d: %w", rf.lineNumber+1, err))
		return
	}
	for _, record := range records {
		rf.consumeRecord(record)
	}
}
