package util

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// IsNetworkClosed checks if the given error tells closing of network connection or end of stream
func IsNetworkClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.HasSuffix(opErr.Err.Error(), "use of closed network connection")
	}
	return false
}

// IsNetworkTimeout checks if the given error is network timeout
func IsNetworkTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsNetworkError checks if the given error comes from network, as opposed to e.g. unexpected response from upstream
func IsNetworkError(err error) bool {
	if IsNetworkClosed(err) || IsNetworkTimeout(err) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE)
}

// IsCancellation checks if the given error is caused by context cancellation
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
