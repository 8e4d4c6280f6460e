package ringbuffer

import (
	"errors"
	"testing"
	"time"

	"github.com/relex/streamchart/base"
	"github.com/stretchr/testify/assert"
)

func testEntry(i int) base.BufferEntry {
	return base.BufferEntry{Timestamp: time.Unix(int64(i), 0), Values: []float64{float64(i)}}
}

func TestBufferEviction(t *testing.T) {
	const capacity = 5
	for _, total := range []int{0, 1, 4, 5, 6, 12, 23} {
		buf := New([]string{"x"}, capacity)
		for i := 0; i < total; i++ {
			assert.NoError(t, buf.Append(testEntry(i)))
		}
		expectedLen := total
		if expectedLen > capacity {
			expectedLen = capacity
		}
		assert.Equal(t, expectedLen, buf.Len(), "total=%d", total)
		snapshot := buf.Snapshot()
		if assert.Len(t, snapshot, expectedLen, "total=%d", total) {
			for i, entry := range snapshot {
				assert.Equal(t, testEntry(total-expectedLen+i), entry, "total=%d", total)
			}
		}
	}
}

func TestBufferSchemaMismatch(t *testing.T) {
	buf := New([]string{"x", "y"}, 3)
	assert.NoError(t, buf.Append(base.BufferEntry{Values: []float64{1, 2}}))

	err := buf.Append(base.BufferEntry{Values: []float64{1}})
	assert.True(t, errors.Is(err, base.ErrSchemaMismatch))
	err = buf.Append(base.BufferEntry{Values: []float64{1, 2, 3}})
	assert.True(t, errors.Is(err, base.ErrSchemaMismatch))

	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, []base.BufferEntry{{Values: []float64{1, 2}}}, buf.Snapshot())
	assert.Equal(t, []string{"x", "y"}, buf.Fields())
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	buf := New([]string{"x"}, 2)
	assert.NoError(t, buf.Append(testEntry(1)))
	snapshot := buf.Snapshot()
	assert.NoError(t, buf.Append(testEntry(2)))
	assert.NoError(t, buf.Append(testEntry(3)))

	assert.Equal(t, []base.BufferEntry{testEntry(1)}, snapshot)
	assert.Equal(t, []base.BufferEntry{testEntry(2), testEntry(3)}, buf.Snapshot())
}

func TestBufferReset(t *testing.T) {
	buf := New([]string{"x"}, 2)
	for i := 0; i < 3; i++ {
		assert.NoError(t, buf.Append(testEntry(i)))
	}
	buf.Reset()
	assert.Zero(t, buf.Len())
	assert.Empty(t, buf.Snapshot())
	assert.Equal(t, 2, buf.Capacity())

	assert.NoError(t, buf.Append(testEntry(9)))
	assert.Equal(t, []base.BufferEntry{testEntry(9)}, buf.Snapshot())
}

func TestBufferInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { New([]string{"x"}, 0) })
}
