package session

import (
	"fmt"
	"time"

	"github.com/relex/streamchart/base"
)

// mapRecord converts a record's payload into a buffer entry in the order of fields
//
// Records without timestamp are stamped with the given arrival time. Legacy records carry a single unlabeled value and
// can only be mapped to queries of one field.
func mapRecord(record base.Record, fields []string, arrival time.Time) (base.BufferEntry, error) {
	entry := base.BufferEntry{
		Timestamp: record.Timestamp,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = arrival
	}

	switch {
	case record.Named != nil:
		entry.Values = make([]float64, len(fields))
		for i, name := range fields {
			value, ok := record.Named[name]
			if !ok {
				return base.BufferEntry{}, fmt.Errorf("%w: missing field '%s'", base.ErrSchemaMismatch, name)
			}
			entry.Values[i] = value
		}
	case record.Legacy && len(fields) != 1:
		return base.BufferEntry{}, fmt.Errorf("%w: single-series record for %d fields", base.ErrSchemaMismatch, len(fields))
	default:
		if len(record.Values) != len(fields) {
			return base.BufferEntry{}, fmt.Errorf("%w: %d values for %d fields", base.ErrSchemaMismatch, len(record.Values), len(fields))
		}
		entry.Values = append([]float64(nil), record.Values...)
	}
	return entry, nil
}
