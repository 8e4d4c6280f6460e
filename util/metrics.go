package util

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relex/gotils/logger"
	"github.com/relex/streamchart/defs"
)

// NewMetricsMux creates a HTTP handler exposing Prometheus metrics and pprof
func NewMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `
<html>
	<head>
		<title>streamchart metrics listener</title>
	</head>
	<body>
		<h1>Metrics listener for streamchart</h1>
		<ul>
			<li><a href='/debug/pprof/'>/debug/pprof</a></li>
			<li><a href='/metrics'>/metrics</a></li>
		</ul>
	</body>
</html>`)
	})
	return mux
}

// LaunchMetricsListener starts a HTTP server for Prometheus metrics
//
// An empty address disables the listener and returns nil
func LaunchMetricsListener(address string) *http.Server {
	if address == "" {
		return nil
	}
	mlogger := logger.WithField(defs.LabelComponent, "MetricsListener")
	server := &http.Server{
		Addr:    address,
		Handler: NewMetricsMux(),
	}
	go func() {
		mlogger.Infof("listening on %s for metrics...", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mlogger.Error("Prometheus listener error: ", err)
		}
	}()
	return server
}
