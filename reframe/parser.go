package reframe

import (
	"fmt"
	"time"

	"github.com/relex/streamchart/base"
	"github.com/tidwall/gjson"
)

// Member names of records in stream
const (
	memberPanelID   = "panelid"
	memberRefID     = "refid"
	memberValues    = "values"
	memberTimestamp = "timestamp" // epoch milliseconds
	memberValue     = "value"     // legacy single-series value
)

// ParseLine parses one complete NDJSON line into records
//
// A line contains either one object or an array of objects. Each object is one of:
//
//	{"panelid": 1, "refid": "A", "values": [10, 20]}
//	{"panelid": 1, "refid": "A", "values": {"timestamp": 1600000000000, "x": 10, "y": 20}}
//	{"timestamp": 1600000000000, "value": 10}
//
// The last form is the legacy single-series record, which carries no correlation identifiers.
func ParseLine(line []byte) ([]base.Record, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("%w: invalid JSON: %s", base.ErrParse, abbreviate(line))
	}
	root := gjson.ParseBytes(line)
	switch {
	case root.IsObject():
		record, err := parseRecord(root)
		if err != nil {
			return nil, err
		}
		return []base.Record{record}, nil
	case root.IsArray():
		elements := root.Array()
		records := make([]base.Record, 0, len(elements))
		for i, elem := range elements {
			if !elem.IsObject() {
				return nil, fmt.Errorf("%w: [%d] is not an object: %s", base.ErrParse, i, abbreviate([]byte(elem.Raw)))
			}
			record, err := parseRecord(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			records = append(records, record)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: neither object nor array: %s", base.ErrParse, abbreviate(line))
	}
}

func parseRecord(obj gjson.Result) (base.Record, error) {
	panelID := obj.Get(memberPanelID)
	refID := obj.Get(memberRefID)
	if !panelID.Exists() && !refID.Exists() {
		return parseLegacyRecord(obj)
	}
	if panelID.Type != gjson.Number {
		return base.Record{}, fmt.Errorf("%w: .%s is not a number: %s", base.ErrParse, memberPanelID, panelID.Raw)
	}
	if refID.Type != gjson.String {
		return base.Record{}, fmt.Errorf("%w: .%s is not a string: %s", base.ErrParse, memberRefID, refID.Raw)
	}
	record := base.Record{
		PanelID: panelID.Int(),
		RefID:   refID.String(),
	}
	values := obj.Get(memberValues)
	switch {
	case values.IsArray():
		elements := values.Array()
		record.Values = make([]float64, len(elements))
		for i, elem := range elements {
			if elem.Type != gjson.Number {
				return base.Record{}, fmt.Errorf("%w: .%s[%d] is not a number: %s", base.ErrParse, memberValues, i, elem.Raw)
			}
			record.Values[i] = elem.Num
		}
	case values.IsObject():
		record.Named = make(map[string]float64)
		var memberErr error
		values.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.Number {
				memberErr = fmt.Errorf("%w: .%s.%s is not a number: %s", base.ErrParse, memberValues, key.String(), value.Raw)
				return false
			}
			if key.String() == memberTimestamp {
				record.Timestamp = time.UnixMilli(value.Int())
			} else {
				record.Named[key.String()] = value.Num
			}
			return true
		})
		if memberErr != nil {
			return base.Record{}, memberErr
		}
	default:
		return base.Record{}, fmt.Errorf("%w: .%s is neither array nor object", base.ErrParse, memberValues)
	}
	return record, nil
}

func parseLegacyRecord(obj gjson.Result) (base.Record, error) {
	value := obj.Get(memberValue)
	if !value.Exists() {
		return base.Record{}, fmt.Errorf("%w: missing .%s/.%s or legacy .%s", base.ErrParse, memberPanelID, memberRefID, memberValue)
	}
	if value.Type != gjson.Number {
		return base.Record{}, fmt.Errorf("%w: .%s is not a number: %s", base.ErrParse, memberValue, value.Raw)
	}
	record := base.Record{
		Legacy: true,
		Values: []float64{value.Num},
	}
	if ts := obj.Get(memberTimestamp); ts.Exists() {
		if ts.Type != gjson.Number {
			return base.Record{}, fmt.Errorf("%w: .%s is not a number: %s", base.ErrParse, memberTimestamp, ts.Raw)
		}
		record.Timestamp = time.UnixMilli(ts.Int())
	}
	return record, nil
}

func abbreviate(s []byte) string {
	const maxLength = 64
	if len(s) <= maxLength {
		return string(s)
	}
	return string(s[:maxLength]) + "..."
}
