package session

import (
	"sync"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/base/btest"
	"github.com/relex/streamchart/defs"
)

var mockClockTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type sessionMockEnv struct {
	Source    *btest.MockSource
	Collector *btest.UpdateCollector
	Session   *Session

	errorLock sync.Mutex
	errors    []error
}

// newSessionMockEnv creates a session on mock source; metricPrefix must be unique per test
func newSessionMockEnv(metricPrefix string, desc base.QueryDescriptor, capacity int) *sessionMockEnv {
	env := &sessionMockEnv{
		Source:    btest.NewMockSource(),
		Collector: btest.NewUpdateCollector(),
	}
	env.Session = NewSession(
		logger.WithField(defs.LabelComponent, "MockSession"),
		Args{
			Descriptor:     desc,
			OpenConnection: env.Source.Open,
			Publish:        env.Collector.Publish,
			ReportError:    env.onError,
			BufferCapacity: capacity,
			MaxLineLength:  1024,
			Clock:          func() time.Time { return mockClockTime },
		},
		base.NewMetricFactory(metricPrefix, nil, nil),
	)
	return env
}

func (env *sessionMockEnv) onError(key base.SessionKey, err error) {
	env.errorLock.Lock()
	defer env.errorLock.Unlock()
	env.errors = append(env.errors, err)
}

func (env *sessionMockEnv) Errors() []error {
	env.errorLock.Lock()
	defer env.errorLock.Unlock()
	return append([]error(nil), env.errors...)
}

// LaunchAndConnect launches the session and returns its connection once opened
func (env *sessionMockEnv) LaunchAndConnect() *btest.MockConnection {
	env.Session.Launch()
	select {
	case key := <-env.Source.Opened():
		conns := env.Source.Connections(key)
		if len(conns) == 0 {
			return nil
		}
		return conns[len(conns)-1]
	case <-time.After(defs.TestReadTimeout):
		return nil
	}
}

func entryValues(entries []base.BufferEntry) [][]float64 {
	values := make([][]float64, len(entries))
	for i, entry := range entries {
		values[i] = entry.Values
	}
	return values
}
