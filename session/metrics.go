package session

import (
	"errors"

	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/streamchart/base"
)

// sessionMetrics defines metrics shared by all sessions created from the same factory
type sessionMetrics struct {
	openedSessionsTotal    promext.RWCounter
	failedSessionsTotal    promext.RWCounter
	cancelledSessionsTotal promext.RWCounter
	drainedSessionsTotal   promext.RWCounter
	streamingSessions      promext.RWGauge // Current numbers of sessions in streaming state
	receivedBytesTotal     promext.RWCounter
	acceptedRecordsTotal   promext.RWCounter
	discardedRecordsTotal  promext.RWCounter // records for other sessions sharing the same stream
	parseErrorsTotal       promext.RWCounter
	schemaMismatchesTotal  promext.RWCounter
	protocolErrorsTotal    promext.RWCounter
	publishedUpdatesTotal  promext.RWCounter
}

func newSessionMetrics(metricFactory *base.MetricFactory) sessionMetrics {
	factory := metricFactory.NewSubFactory("session_", nil, nil)
	sessions := factory.AddOrGetCounterVec("sessions_total", "Numbers of sessions by how they ended, or opened", []string{"result"}, nil)
	records := factory.AddOrGetCounterVec("records_total", "Numbers of received records by result", []string{"result"}, nil)
	errs := factory.AddOrGetCounterVec("errors_total", "Numbers of locally handled errors by type", []string{"type"}, nil)

	return sessionMetrics{
		openedSessionsTotal:    sessions.WithLabelValues("opened"),
		failedSessionsTotal:    sessions.WithLabelValues("failed"),
		cancelledSessionsTotal: sessions.WithLabelValues("cancelled"),
		drainedSessionsTotal:   sessions.WithLabelValues("drained"),
		streamingSessions:      factory.AddOrGetGauge("streaming", "Numbers of currently streaming sessions", nil, nil),
		receivedBytesTotal:     factory.AddOrGetCounter("received_bytes_total", "Total length in bytes of received stream data", nil, nil),
		acceptedRecordsTotal:   records.WithLabelValues("accepted"),
		discardedRecordsTotal:  records.WithLabelValues("discarded"),
		parseErrorsTotal:       errs.WithLabelValues("parse"),
		schemaMismatchesTotal:  errs.WithLabelValues("schema"),
		protocolErrorsTotal:    errs.WithLabelValues("protocol"),
		publishedUpdatesTotal:  factory.AddOrGetCounter("published_updates_total", "Numbers of published buffer snapshots", nil, nil),
	}
}

func (metrics *sessionMetrics) OnLocalError(err error) {
	switch {
	case errors.Is(err, base.ErrParse):
		metrics.parseErrorsTotal.Inc()
	case errors.Is(err, base.ErrSchemaMismatch):
		metrics.schemaMismatchesTotal.Inc()
	case errors.Is(err, base.ErrProtocol):
		metrics.protocolErrorsTotal.Inc()
	}
}

func (metrics *sessionMetrics) OnEnded(state base.SessionState, wasStreaming bool) {
	if wasStreaming {
		metrics.streamingSessions.Dec()
	}
	switch state {
	case base.StateFailed:
		metrics.failedSessionsTotal.Inc()
	case base.StateCancelled:
		metrics.cancelledSessionsTotal.Inc()
	case base.StateDraining:
		metrics.drainedSessionsTotal.Inc()
	}
}
