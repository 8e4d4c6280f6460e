package util

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunOnce(t *testing.T) {
	v1 := int64(0)
	called := int64(0)

	f := NewRunOnce(func() {
		atomic.AddInt64(&v1, 1)
	})

	wg := &sync.WaitGroup{}
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f() {
				atomic.AddInt64(&called, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(1), called)
	assert.False(t, f())
}
