// Package ringbuffer provides the fixed-capacity entry buffer of streaming sessions
package ringbuffer

import (
	"fmt"

	"github.com/relex/streamchart/base"
)

// Buffer is a fixed-capacity FIFO of entries sharing one field schema
//
// Appending to a full buffer evicts exactly the oldest entry. Buffer is not thread-safe.
type Buffer struct {
	fields  []string
	entries []base.BufferEntry // ring storage, allocated on demand up to capacity
	head    int                // index of the oldest entry once the ring is full
	size    int
}

// New creates a Buffer for entries with the given fields
func New(fields []string, capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid buffer capacity: %d", capacity))
	}
	return &Buffer{
		fields:  fields,
		entries: make([]base.BufferEntry, 0, capacity),
		head:    0,
		size:    0,
	}
}

// Append adds the entry at the tail, evicting the oldest entry if full
//
// An entry whose number of values differs from the number of fields is rejected with ErrSchemaMismatch and the
// buffer is left unchanged.
func (buf *Buffer) Append(entry base.BufferEntry) error {
	if len(entry.Values) != len(buf.fields) {
		return fmt.Errorf("%w: %d values for %d fields", base.ErrSchemaMismatch, len(entry.Values), len(buf.fields))
	}
	capacity := cap(buf.entries)
	if len(buf.entries) < capacity {
		buf.entries = append(buf.entries, entry)
		buf.size++
		return nil
	}
	buf.entries[buf.head] = entry
	buf.head = (buf.head + 1) % capacity
	return nil
}

// Snapshot returns a copy of all entries from the oldest to the newest
func (buf *Buffer) Snapshot() []base.BufferEntry {
	result := make([]base.BufferEntry, 0, buf.size)
	result = append(result, buf.entries[buf.head:]...)
	result = append(result, buf.entries[:buf.head]...)
	return result
}

// Len returns the number of entries
func (buf *Buffer) Len() int {
	return buf.size
}

// Capacity returns the maximum number of entries
func (buf *Buffer) Capacity() int {
	return cap(buf.entries)
}

// Fields returns the field names, in the order of entry values
func (buf *Buffer) Fields() []string {
	return buf.fields
}

// Reset removes all entries
func (buf *Buffer) Reset() {
	buf.entries = buf.entries[:0]
	buf.head = 0
	buf.size = 0
}
