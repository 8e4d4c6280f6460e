package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relex/streamchart/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"
)

var testUpdates = []base.Update{
	{
		Key:     base.SessionKey{PanelID: 1, QueryID: "A"},
		QueryID: "A",
		Entries: []base.BufferEntry{
			{Timestamp: time.UnixMilli(1600000000000), Values: []float64{10, 0.5}},
			{Timestamp: time.UnixMilli(1600000001000), Values: []float64{20, 1.5}},
		},
		State: base.StateStreaming,
	},
	{
		Key:     base.SessionKey{PanelID: 2, QueryID: "B"},
		QueryID: "B",
		Entries: []base.BufferEntry{},
		State:   base.StateFailed,
		Err:     errors.New("transport error: connection refused"),
	},
}

func TestJSONWriter(t *testing.T) {
	out := &bytes.Buffer{}
	writer, err := NewUpdateWriter(FormatJSON, out)
	require.NoError(t, err)
	for _, update := range testUpdates {
		require.NoError(t, writer.Write(update))
	}

	scanner := bufio.NewScanner(out)
	require.True(t, scanner.Scan())
	assert.JSONEq(t, `{"panelId":1,"queryId":"A","state":"streaming","entries":[{"t":1600000000000,"v":[10,0.5]},{"t":1600000001000,"v":[20,1.5]}]}`, scanner.Text())
	require.True(t, scanner.Scan())
	assert.JSONEq(t, `{"panelId":2,"queryId":"B","state":"failed","error":"transport error: connection refused","entries":[]}`, scanner.Text())
	assert.False(t, scanner.Scan())

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"panelId":1,"queryId":"A","state":"streaming","entries":[{"t":1600000000000,"v":[10]}]}`), &msg))
	assert.Equal(t, time.UnixMilli(1600000000000), msg.Entries[0].EntryTime())
}

func TestMsgpackWriter(t *testing.T) {
	out := &bytes.Buffer{}
	writer, err := NewUpdateWriter(FormatMsgpack, out)
	require.NoError(t, err)
	for _, update := range testUpdates {
		require.NoError(t, writer.Write(update))
	}

	decoder := msgpack.NewDecoder(out)
	var first, second Message
	require.NoError(t, decoder.Decode(&first))
	require.NoError(t, decoder.Decode(&second))
	assert.Equal(t, NewMessage(testUpdates[0]), first)
	assert.Equal(t, "failed", second.State)
	assert.Equal(t, "transport error: connection refused", second.Error)
	assert.Empty(t, second.Entries)
}

func TestWriterFormats(t *testing.T) {
	assert.NoError(t, VerifyFormat(FormatJSON))
	assert.NoError(t, VerifyFormat(FormatMsgpack))
	_, err := NewUpdateWriter("xml", &bytes.Buffer{})
	assert.EqualError(t, err, "unsupported format 'xml'")

	writer, err := NewUpdateWriter("", &bytes.Buffer{})
	assert.NoError(t, err)
	assert.NotNil(t, writer)
}
