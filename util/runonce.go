package util

import (
	"sync/atomic"
)

// RunOnce wraps a function to be called at most once, e.g. launching a goroutine or closing a connection
//
// The wrapper returns true only for the call which actually runs the function.
type RunOnce func() bool

// NewRunOnce creates a RunOnce of f
func NewRunOnce(f func()) RunOnce {
	var invoked int32
	return func() bool {
		if !atomic.CompareAndSwapInt32(&invoked, 0, 1) {
			return false
		}
		f()
		return true
	}
}
