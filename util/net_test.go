package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNet(t *testing.T) {
	lsnr, lerr := net.Listen("tcp", "localhost:0")
	assert.NoError(t, lerr)
	defer lsnr.Close()

	t.Log("listening " + lsnr.Addr().String())

	go func() {
		cconn, cerr := net.Dial("tcp", lsnr.Addr().String())
		assert.NoError(t, cerr)

		time.Sleep(100 * time.Millisecond)
		cconn.Close()
	}()

	sconn, serr := lsnr.Accept()
	assert.NoError(t, serr)

	t.Run("check timeout", func(tt *testing.T) {
		assert.NoError(tt, sconn.SetReadDeadline(time.Now().Add(time.Millisecond)))
		_, err := sconn.Read(make([]byte, 10))
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkTimeout(err))
			assert.True(tt, IsNetworkError(err))
			assert.False(tt, IsNetworkClosed(err))
		}
	})

	t.Run("check closed", func(tt *testing.T) {
		sconn.Close()
		_, err := sconn.Write([]byte("Hi"))
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkError(err))
			assert.True(tt, IsNetworkClosed(err))
		}
	})
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsNetworkClosed(fmt.Errorf("read body: %w", io.EOF)))
	assert.True(t, IsNetworkError(io.ErrUnexpectedEOF))
	assert.False(t, IsNetworkError(fmt.Errorf("unexpected status 500")))
	assert.True(t, IsCancellation(fmt.Errorf("request: %w", context.Canceled)))
	assert.False(t, IsCancellation(io.EOF))
}
