package orchestrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/session"
	"github.com/relex/streamchart/util"
)

// SessionOptions contains the parameters shared by all sessions created by a Multiplexer
type SessionOptions struct {
	BufferCapacity int                // 0 = defs.BufferDefaultCapacity
	MaxLineLength  int                // 0 = defs.ReframerMaxLineBytes
	ReportError    base.ErrorReporter // optional
}

// Multiplexer creates sessions for queries and merges their updates into subscriptions
type Multiplexer struct {
	logger        logger.Logger
	registry      *Registry
	openConn      base.OpenConnectionFunc
	options       SessionOptions
	metricFactory *base.MetricFactory
	subscriptions promext.RWGauge
}

// Subscription is the merged output of all sessions of one query submission
//
// Updates from different sessions are delivered in no particular order, while updates of one session keep their
// order. The updates channel is closed after Unsubscribe.
type Subscription struct {
	logger      logger.Logger
	id          string
	registry    *Registry
	updates     chan base.Update
	done        *channels.SignalAwaitable
	tornDown    *channels.SignalAwaitable // signaled after the updates channel is closed
	sessions    []*session.Session
	unsubscribe util.RunOnce
}

// NewMultiplexer creates a Multiplexer opening streams by openConn
func NewMultiplexer(parentLogger logger.Logger, registry *Registry, openConn base.OpenConnectionFunc,
	options SessionOptions, metricFactory *base.MetricFactory) *Multiplexer {

	subscriptions := metricFactory.AddOrGetGauge("subscriptions", "Numbers of current subscriptions", nil, nil)
	subscriptions.Set(0)
	return &Multiplexer{
		logger:        parentLogger.WithField(defs.LabelComponent, "Multiplexer"),
		registry:      registry,
		openConn:      openConn,
		options:       options,
		metricFactory: metricFactory,
		subscriptions: subscriptions,
	}
}

// Query verifies the descriptors and starts one session for each of them
//
// A descriptor whose key is already registered, by this or another subscription, replaces the existing session.
// Descriptors of the same key in one submission are rejected.
func (mux *Multiplexer) Query(descriptors []base.QueryDescriptor) (*Subscription, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no queries")
	}
	seen := make(map[base.SessionKey]struct{}, len(descriptors))
	for i, desc := range descriptors {
		if err := desc.Verify(); err != nil {
			return nil, fmt.Errorf("queries[%d]%w", i, err)
		}
		if _, dup := seen[desc.Key()]; dup {
			return nil, fmt.Errorf("queries[%d]: duplicated key %s", i, desc.Key())
		}
		seen[desc.Key()] = struct{}{}
	}

	id := uuid.NewString()
	sub := &Subscription{
		logger:   mux.logger.WithField(defs.LabelClient, id),
		id:       id,
		registry: mux.registry,
		updates:  make(chan base.Update),
		done:     channels.NewSignalAwaitable(),
		tornDown: channels.NewSignalAwaitable(),
		sessions: make([]*session.Session, 0, len(descriptors)),
	}
	sub.unsubscribe = util.NewRunOnce(func() {
		sub.teardown()
		mux.subscriptions.Dec()
	})
	mux.subscriptions.Inc()

	for _, desc := range descriptors {
		desc := desc
		s, replaced := mux.registry.GetOrCreate(desc.Key(), func() *session.Session {
			return session.NewSession(sub.logger, session.Args{
				Descriptor:     desc,
				OpenConnection: mux.openConn,
				Publish:        sub.publish,
				ReportError:    mux.options.ReportError,
				BufferCapacity: mux.options.BufferCapacity,
				MaxLineLength:  mux.options.MaxLineLength,
			}, mux.metricFactory)
		})
		if replaced {
			sub.logger.Infof("replaced existing session of %s", desc.Key())
		}
		sub.sessions = append(sub.sessions, s)
		s.Launch()
	}
	sub.logger.Infof("subscribed to %d queries", len(descriptors))
	return sub, nil
}

// Shutdown cancels all registered sessions of all subscriptions
//
// Subscriptions still need to be unsubscribed by their owners.
func (mux *Multiplexer) Shutdown() {
	mux.logger.Info("shutdown")
	mux.registry.CancelAll()
}

// Registry returns the session registry
func (mux *Multiplexer) Registry() *Registry {
	return mux.registry
}

// ID returns the unique ID of this subscription
func (sub *Subscription) ID() string {
	return sub.id
}

// Updates returns the channel of merged updates, closed after Unsubscribe
func (sub *Subscription) Updates() <-chan base.Update {
	return sub.updates
}

// Done returns an Awaitable signaled as soon as Unsubscribe is called
func (sub *Subscription) Done() channels.Awaitable {
	return sub.done
}

// Sessions returns the sessions created for this subscription, in order of descriptors
func (sub *Subscription) Sessions() []*session.Session {
	return sub.sessions
}

// Unsubscribe cancels all sessions of this subscription and waits for them to stop before closing the updates
// channel
//
// It's safe to call Unsubscribe many times and from multiple goroutines; every call returns only after the teardown
// is complete. Updates not yet received are dropped.
func (sub *Subscription) Unsubscribe() {
	sub.unsubscribe()
	sub.tornDown.WaitForever()
}

func (sub *Subscription) teardown() {
	sub.logger.Info("unsubscribe")
	sub.done.Signal()

	stopped := make([]channels.Awaitable, 0, len(sub.sessions))
	for _, s := range sub.sessions {
		s.Cancel()
		sub.registry.Release(s.Key(), s)
		stopped = append(stopped, s.Stopped())
	}
	if !channels.AllAwaitables(stopped...).Wait(defs.SessionStopTimeout) {
		sub.logger.Errorf("BUG: timeout waiting for %d sessions to stop", len(stopped))
	}
	close(sub.updates)
	sub.tornDown.Signal()
	sub.logger.Info("unsubscribed")
}

func (sub *Subscription) publish(ctx context.Context, update base.Update) bool {
	select {
	case <-ctx.Done():
		return false
	case <-sub.done.Channel():
		return false
	default:
	}
	select {
	case sub.updates <- update:
		return true
	case <-ctx.Done():
		return false
	case <-sub.done.Channel():
		return false
	}
}
