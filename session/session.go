// Package session implements streaming sessions, each pulling one query's stream into its own bounded buffer
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/buffer/ringbuffer"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/reframe"
	"github.com/relex/streamchart/util"
)

// PublishFunc delivers an update to the consumer of a session
//
// It may block until the update is accepted, and should return false without delivering as soon as ctx is cancelled.
type PublishFunc func(ctx context.Context, update base.Update) bool

// Args contains the parameters of a new Session
type Args struct {
	Descriptor     base.QueryDescriptor
	OpenConnection base.OpenConnectionFunc
	Publish        PublishFunc
	ReportError    base.ErrorReporter // optional hook for locally handled errors
	BufferCapacity int                // 0 = defs.BufferDefaultCapacity
	MaxLineLength  int                // 0 = defs.ReframerMaxLineBytes
	Clock          func() time.Time   // nil = time.Now, for stamping records without timestamp
}

// Session pulls the stream of one query, appends matching records to its buffer and publishes the whole buffer after
// each change
//
// The stream is processed on the session's own goroutine started by Launch. Cancel may be called from any goroutine
// at any time; once observed, no further buffer mutation or publishing happens.
type Session struct {
	logger      logger.Logger
	id          string
	desc        base.QueryDescriptor
	key         base.SessionKey
	openConn    base.OpenConnectionFunc
	publish     PublishFunc
	reportError base.ErrorReporter
	now         func() time.Time
	maxLineLen  int
	metrics     sessionMetrics

	state      int32 // base.SessionState
	ctx        context.Context
	cancel     context.CancelFunc
	launch     util.RunOnce
	stopped    *channels.SignalAwaitable
	connLock   sync.Mutex
	conn       base.Connection // nil before opening or after closing
	bufferLock sync.Mutex      // for Snapshot from other goroutines
	buffer     *ringbuffer.Buffer
}

// NewSession creates a Session in idle state
func NewSession(parentLogger logger.Logger, args Args, metricFactory *base.MetricFactory) *Session {
	id := uuid.NewString()
	capacity := args.BufferCapacity
	if capacity == 0 {
		capacity = defs.BufferDefaultCapacity
	}
	maxLineLen := args.MaxLineLength
	if maxLineLen == 0 {
		maxLineLen = defs.ReframerMaxLineBytes
	}
	clock := args.Clock
	if clock == nil {
		clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelKey:     args.Descriptor.Key().String(),
			defs.LabelSession: id,
		}),
		id:          id,
		desc:        args.Descriptor,
		key:         args.Descriptor.Key(),
		openConn:    args.OpenConnection,
		publish:     args.Publish,
		reportError: args.ReportError,
		now:         clock,
		maxLineLen:  maxLineLen,
		metrics:     newSessionMetrics(metricFactory),
		state:       int32(base.StateIdle),
		ctx:         ctx,
		cancel:      cancel,
		stopped:     channels.NewSignalAwaitable(),
		conn:        nil,
		buffer:      ringbuffer.New(args.Descriptor.Fields, capacity),
	}
	s.launch = util.NewRunOnce(func() { go s.run() })
	return s
}

// Launch starts the session goroutine, only effective on the first call
func (s *Session) Launch() {
	s.launch()
}

// Cancel stops the session from any non-terminal state and releases its connection
//
// The state of a session already drained or failed is kept. Cancel is idempotent and doesn't wait; use Stopped to
// wait for the goroutine to exit.
func (s *Session) Cancel() {
	for {
		current := s.State()
		if current.IsTerminal() {
			break
		}
		if s.transition(current, base.StateCancelled) {
			s.logger.Infof("cancel requested in state %s", current)
			if current == base.StateIdle {
				s.launch() // to have Stopped signaled
			}
			break
		}
	}
	s.cancel()
	s.closeConnection()
}

// State returns the current state
func (s *Session) State() base.SessionState {
	return base.SessionState(atomic.LoadInt32(&s.state))
}

// Key returns the session key
func (s *Session) Key() base.SessionKey {
	return s.key
}

// ID returns the unique ID of this session
func (s *Session) ID() string {
	return s.id
}

// Descriptor returns the query descriptor of this session
func (s *Session) Descriptor() base.QueryDescriptor {
	return s.desc
}

// Snapshot returns a copy of the current buffer
func (s *Session) Snapshot() []base.BufferEntry {
	s.bufferLock.Lock()
	defer s.bufferLock.Unlock()
	return s.buffer.Snapshot()
}

// Stopped returns an Awaitable which is signaled when the session goroutine exits
func (s *Session) Stopped() channels.Awaitable {
	return s.stopped
}

func (s *Session) run() {
	defer s.stopped.Signal()
	defer s.cancel()
	defer s.closeConnection()

	if !s.transition(base.StateIdle, base.StateConnecting) {
		s.logger.Info("cancelled before start")
		s.metrics.OnEnded(base.StateCancelled, false)
		return
	}
	s.metrics.openedSessionsTotal.Inc()
	s.logger.Info("connecting")

	conn, err := s.openConn(s.ctx, s.desc)
	if err != nil {
		if s.ctx.Err() != nil {
			s.logger.Info("cancelled while connecting")
			s.metrics.OnEnded(base.StateCancelled, false)
			return
		}
		s.fail(err)
		s.metrics.OnEnded(base.StateFailed, false)
		return
	}
	if !s.setConnection(conn) {
		conn.Close()
		s.logger.Info("cancelled right after connected")
		s.metrics.OnEnded(base.StateCancelled, false)
		return
	}
	if !s.transition(base.StateConnecting, base.StateStreaming) {
		s.metrics.OnEnded(s.State(), false)
		return
	}
	s.metrics.streamingSessions.Inc()
	s.logger.Info("streaming")

	s.metrics.OnEnded(s.stream(conn), true)
}

// stream runs the read loop until end of stream, failure or cancellation and returns the final state
func (s *Session) stream(conn base.Connection) base.SessionState {
	reframer := reframe.NewReframer(s.maxLineLen, defs.ReframerMinBufferBytes, s.onRecord, s.onLocalError)
	read := func(p []byte) (int, error) {
		n, err := conn.Read(p)
		s.metrics.receivedBytesTotal.Add(uint64(n))
		return n, err
	}
	for {
		err := reframer.Read(read)
		if s.ctx.Err() != nil {
			s.logger.Info("stopped streaming on cancellation")
			return base.StateCancelled
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			reframer.End()
			if !s.transition(base.StateStreaming, base.StateDraining) {
				return s.State()
			}
			s.logger.Info("end of stream")
			s.emit(base.Update{
				Key:     s.key,
				QueryID: s.desc.QueryID,
				Entries: s.Snapshot(),
				State:   base.StateDraining,
			})
			return base.StateDraining
		default:
			s.fail(fmt.Errorf("%w: failed to read: %s", base.ErrTransport, err.Error()))
			return s.State()
		}
	}
}

func (s *Session) onRecord(record base.Record) {
	if s.ctx.Err() != nil {
		return
	}
	if !record.Legacy && !s.key.Matches(record) {
		s.metrics.discardedRecordsTotal.Inc()
		return
	}
	entry, err := mapRecord(record, s.desc.Fields, s.now())
	if err != nil {
		s.onLocalError(err)
		return
	}

	s.bufferLock.Lock()
	err = s.buffer.Append(entry)
	snapshot := s.buffer.Snapshot()
	s.bufferLock.Unlock()
	if err != nil {
		s.onLocalError(err)
		return
	}
	s.metrics.acceptedRecordsTotal.Inc()

	s.emit(base.Update{
		Key:     s.key,
		QueryID: s.desc.QueryID,
		Entries: snapshot,
		State:   base.StateStreaming,
	})
}

func (s *Session) emit(update base.Update) {
	if s.ctx.Err() != nil {
		return
	}
	if !s.publish(s.ctx, update) {
		s.logger.Debugf("update (%s, %d entries) not delivered", update.State, len(update.Entries))
		return
	}
	s.metrics.publishedUpdatesTotal.Inc()
}

func (s *Session) onLocalError(err error) {
	s.logger.Warn(err.Error())
	s.metrics.OnLocalError(err)
	if s.reportError != nil {
		s.reportError(s.key, err)
	}
}

// fail moves the session to failed state and reports the error, unless it has been cancelled
func (s *Session) fail(err error) {
	for {
		current := s.State()
		if current.IsTerminal() {
			return
		}
		if s.transition(current, base.StateFailed) {
			break
		}
	}
	if !errors.Is(err, base.ErrTransport) {
		err = fmt.Errorf("%w: %s", base.ErrTransport, err.Error())
	}
	s.logger.Warnf("failed: %s", err.Error())
	if s.reportError != nil {
		s.reportError(s.key, err)
	}
	s.emit(base.Update{
		Key:     s.key,
		QueryID: s.desc.QueryID,
		Entries: s.Snapshot(),
		State:   base.StateFailed,
		Err:     err,
	})
}

func (s *Session) transition(from base.SessionState, to base.SessionState) bool {
	return atomic.CompareAndSwapInt32(&s.state, int32(from), int32(to))
}

// setConnection stores the opened connection, or returns false if the session has been cancelled meanwhile
func (s *Session) setConnection(conn base.Connection) bool {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conn = conn
	return true
}

// closeConnection closes the stored connection if any; it's called by both Cancel and the session goroutine
func (s *Session) closeConnection() {
	s.connLock.Lock()
	conn := s.conn
	s.conn = nil
	s.connLock.Unlock()
	if conn != nil {
		s.logger.Info("close connection")
		conn.Close()
	}
}
