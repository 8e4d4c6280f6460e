package reframe

import (
	"errors"
	"testing"

	"github.com/relex/streamchart/base"
	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	t.Run("multi-series array", func(tt *testing.T) {
		records, err := ParseLine([]byte(`[{"panelid":1,"refid":"A","values":[10,20.5]},{"panelid":2,"refid":"B","values":[]}]`))
		assert.NoError(tt, err)
		assert.Equal(tt, []base.Record{
			{PanelID: 1, RefID: "A", Values: []float64{10, 20.5}},
			{PanelID: 2, RefID: "B", Values: []float64{}},
		}, records)
	})
	t.Run("multi-series object with named values", func(tt *testing.T) {
		records, err := ParseLine([]byte(`{"panelid":5,"refid":"C","values":{"timestamp":1600000000123,"cpu_load":3,"row_count":25}}`))
		assert.NoError(tt, err)
		if assert.Len(tt, records, 1) {
			assert.Equal(tt, int64(5), records[0].PanelID)
			assert.Equal(tt, "C", records[0].RefID)
			assert.Equal(tt, int64(1600000000123), records[0].Timestamp.UnixMilli())
			assert.Equal(tt, map[string]float64{"cpu_load": 3, "row_count": 25}, records[0].Named)
			assert.Nil(tt, records[0].Values)
		}
	})
	t.Run("legacy", func(tt *testing.T) {
		records, err := ParseLine([]byte(`{"timestamp":1600000000000,"value":1.5}`))
		assert.NoError(tt, err)
		if assert.Len(tt, records, 1) {
			assert.True(tt, records[0].Legacy)
			assert.Equal(tt, []float64{1.5}, records[0].Values)
			assert.Equal(tt, int64(1600000000000), records[0].Timestamp.UnixMilli())
		}
	})
	t.Run("legacy without timestamp", func(tt *testing.T) {
		records, err := ParseLine([]byte(`{"value":2}`))
		assert.NoError(tt, err)
		if assert.Len(tt, records, 1) {
			assert.True(tt, records[0].Timestamp.IsZero())
		}
	})

	malformed := map[string]string{
		"not json":          `not-json`,
		"scalar":            `42`,
		"array of scalars":  `[1,2]`,
		"string panel id":   `{"panelid":"1","refid":"A","values":[1]}`,
		"numeric ref id":    `{"panelid":1,"refid":1,"values":[1]}`,
		"missing values":    `{"panelid":1,"refid":"A"}`,
		"non-numeric value": `{"panelid":1,"refid":"A","values":[1,"x"]}`,
		"non-numeric named": `{"panelid":1,"refid":"A","values":{"x":true}}`,
		"no identifiers":    `{"values":[1]}`,
		"legacy string":     `{"timestamp":1,"value":"1"}`,
		"legacy bad time":   `{"timestamp":"now","value":1}`,
		"truncated":         `{"panelid":1,"refid":"A","values":[1]`,
	}
	for name, line := range malformed {
		records, err := ParseLine([]byte(line))
		assert.Nil(t, records, name)
		if assert.Error(t, err, name) {
			assert.True(t, errors.Is(err, base.ErrParse), name)
		}
	}
}
