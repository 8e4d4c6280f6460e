// Package orchestrate keeps the registry of live sessions and merges their updates into subscriptions
package orchestrate

import (
	"sync"

	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/session"
	"golang.org/x/exp/slices"
)

// Registry keeps at most one live Session per key
//
// Lookups are lock-free. Mutations are serialized so that a replacement can't race with another replacement or
// removal of the same key.
type Registry struct {
	logger        logger.Logger
	lock          sync.Mutex
	sessions      *xsync.MapOf[*session.Session] // key string => session
	liveSessions  promext.RWGauge
	replacedTotal promext.RWCounter
}

// NewRegistry creates an empty Registry
func NewRegistry(parentLogger logger.Logger, metricFactory *base.MetricFactory) *Registry {
	liveSessions := metricFactory.AddOrGetGauge("registry_sessions", "Numbers of currently registered sessions", nil, nil)
	liveSessions.Set(0) // in case metricFactory is reused
	return &Registry{
		logger:        parentLogger.WithField(defs.LabelComponent, "Registry"),
		sessions:      xsync.NewMapOf[*session.Session](),
		liveSessions:  liveSessions,
		replacedTotal: metricFactory.AddOrGetCounter("registry_replaced_sessions_total", "Numbers of sessions replaced by resubmission", nil, nil),
	}
}

// GetOrCreate registers a new session created by the given function under key
//
// An existing session of the same key is cancelled and waited for before the new one is created, so no two sessions
// of the same key ever run at the same time. Returns the new session and whether an existing one has been replaced.
// The new session is not launched.
func (reg *Registry) GetOrCreate(key base.SessionKey, create func() *session.Session) (*session.Session, bool) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	keyStr := key.String()
	previous, replaced := reg.sessions.Load(keyStr)
	if replaced {
		reg.logger.Infof("replace session %s (%s) in state %s", keyStr, previous.ID(), previous.State())
		reg.stopSession(previous)
		reg.replacedTotal.Inc()
	} else {
		reg.liveSessions.Inc()
	}

	s := create()
	reg.sessions.Store(keyStr, s)
	return s, replaced
}

// Cancel cancels and removes the session of key, returns false if there is none
func (reg *Registry) Cancel(key base.SessionKey) bool {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	keyStr := key.String()
	s, ok := reg.sessions.Load(keyStr)
	if !ok {
		return false
	}
	reg.remove(keyStr)
	reg.stopSession(s)
	return true
}

// Lookup finds the registered session of key
func (reg *Registry) Lookup(key base.SessionKey) (*session.Session, bool) {
	return reg.sessions.Load(key.String())
}

// Release removes the session of key if it is still the registered one, returns false if it has been replaced or
// removed
//
// The session itself is not touched.
func (reg *Registry) Release(key base.SessionKey, s *session.Session) bool {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	keyStr := key.String()
	if current, ok := reg.sessions.Load(keyStr); !ok || current != s {
		return false
	}
	reg.remove(keyStr)
	return true
}

// Len returns the number of registered sessions
func (reg *Registry) Len() int {
	return reg.sessions.Size()
}

// Keys returns the keys of all registered sessions, ordered by panel and query
func (reg *Registry) Keys() []base.SessionKey {
	var keys []base.SessionKey
	reg.sessions.Range(func(_ string, s *session.Session) bool {
		keys = append(keys, s.Key())
		return true
	})
	slices.SortFunc(keys, func(a, b base.SessionKey) bool {
		if a.PanelID != b.PanelID {
			return a.PanelID < b.PanelID
		}
		return a.QueryID < b.QueryID
	})
	return keys
}

// CancelAll cancels and removes all sessions and waits for them to stop
func (reg *Registry) CancelAll() {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	var keyStrs []string
	var stopped []channels.Awaitable
	reg.sessions.Range(func(keyStr string, s *session.Session) bool {
		keyStrs = append(keyStrs, keyStr)
		s.Cancel()
		stopped = append(stopped, s.Stopped())
		return true
	})
	for _, keyStr := range keyStrs {
		reg.remove(keyStr)
	}
	if len(stopped) == 0 {
		return
	}
	reg.logger.Infof("cancelled all sessions: %d", len(stopped))
	if !channels.AllAwaitables(stopped...).Wait(defs.SessionStopTimeout) {
		reg.logger.Errorf("BUG: timeout waiting for %d sessions to stop", len(stopped))
	}
}

func (reg *Registry) remove(keyStr string) {
	reg.sessions.Delete(keyStr)
	reg.liveSessions.Dec()
}

func (reg *Registry) stopSession(s *session.Session) {
	s.Cancel()
	if !s.Stopped().Wait(defs.SessionStopTimeout) {
		reg.logger.Errorf("BUG: timeout waiting for session %s (%s) to stop", s.Key(), s.ID())
	}
}
