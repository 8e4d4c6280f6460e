package btest

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/relex/gotils/channels"
	"github.com/relex/streamchart/base"
)

// MockChunk is one result of MockConnection.Read
type MockChunk struct {
	Data []byte
	Err  error // returned after Data has been fully read
}

// MockConnection is a base.Connection fed by test code through a channel
//
// Read blocks until the next chunk is sent, Close is called or the chunk channel is closed (end of stream).
type MockConnection struct {
	chunks     chan MockChunk
	endOnce    sync.Once
	closed     *channels.SignalAwaitable
	closeCount int32
	pending    MockChunk
}

// NewMockConnection creates a MockConnection with buffered chunk channel
func NewMockConnection() *MockConnection {
	return &MockConnection{
		chunks: make(chan MockChunk, 1000),
		closed: channels.NewSignalAwaitable(),
	}
}

// Send queues text to be read
func (conn *MockConnection) Send(text string) {
	conn.chunks <- MockChunk{Data: []byte(text)}
}

// Fail queues an error to be returned by Read
func (conn *MockConnection) Fail(err error) {
	conn.chunks <- MockChunk{Err: err}
}

// End marks the end of stream after all queued chunks
func (conn *MockConnection) End() {
	conn.endOnce.Do(func() { close(conn.chunks) })
}

// Read implements base.Connection
func (conn *MockConnection) Read(p []byte) (int, error) {
	if len(conn.pending.Data) == 0 && conn.pending.Err == nil {
		select {
		case chunk, ok := <-conn.chunks:
			if !ok {
				return 0, io.EOF
			}
			conn.pending = chunk
		case <-conn.closed.Channel():
			return 0, net.ErrClosed
		}
	}
	n := copy(p, conn.pending.Data)
	conn.pending.Data = conn.pending.Data[n:]
	if len(conn.pending.Data) == 0 && conn.pending.Err != nil {
		err := conn.pending.Err
		conn.pending.Err = nil
		return n, err
	}
	return n, nil
}

// Close implements base.Connection
func (conn *MockConnection) Close() {
	atomic.AddInt32(&conn.closeCount, 1)
	conn.closed.Signal()
}

// CloseCount returns how many times Close has been called
func (conn *MockConnection) CloseCount() int {
	return int(atomic.LoadInt32(&conn.closeCount))
}

// Closed returns an Awaitable signaled on the first Close
func (conn *MockConnection) Closed() channels.Awaitable {
	return conn.closed
}

// MockSource opens MockConnection(s) for queries and keeps all of them for inspection
type MockSource struct {
	lock        sync.Mutex
	connections map[base.SessionKey][]*MockConnection
	opened      chan base.SessionKey

	// OpenError if set is returned for all later opening
	OpenError error

	// Block if set makes opening wait until cancelled
	Block bool
}

// NewMockSource creates a MockSource
func NewMockSource() *MockSource {
	return &MockSource{
		connections: make(map[base.SessionKey][]*MockConnection),
		opened:      make(chan base.SessionKey, 1000),
	}
}

// Open implements base.OpenConnectionFunc
func (src *MockSource) Open(ctx context.Context, desc base.QueryDescriptor) (base.Connection, error) {
	src.lock.Lock()
	openErr := src.OpenError
	block := src.Block
	src.lock.Unlock()

	if block {
		src.opened <- desc.Key()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if openErr != nil {
		src.opened <- desc.Key()
		return nil, openErr
	}

	conn := NewMockConnection()
	src.lock.Lock()
	src.connections[desc.Key()] = append(src.connections[desc.Key()], conn)
	src.lock.Unlock()
	src.opened <- desc.Key()
	return conn, nil
}

// Opened returns a channel receiving the key of each opening attempt
func (src *MockSource) Opened() <-chan base.SessionKey {
	return src.opened
}

// Connections returns all connections opened for the key in order
func (src *MockSource) Connections(key base.SessionKey) []*MockConnection {
	src.lock.Lock()
	defer src.lock.Unlock()
	return append([]*MockConnection(nil), src.connections[key]...)
}

// AllConnections returns all connections ever opened
func (src *MockSource) AllConnections() []*MockConnection {
	src.lock.Lock()
	defer src.lock.Unlock()
	var all []*MockConnection
	for _, list := range src.connections {
		all = append(all, list...)
	}
	return all
}
