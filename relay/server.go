// Package relay serves query subscriptions to WebSocket clients
package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/orchestrate"
	"github.com/relex/streamchart/output"
	"github.com/relex/streamchart/util"
)

// QueryRequest is the first and only message expected from a client
type QueryRequest struct {
	Queries []base.QueryDescriptor `json:"queries"`
}

// ErrorReply is sent to a client whose request is rejected, before closing
type ErrorReply struct {
	Error string `json:"error"`
}

// Server relays subscriptions to WebSocket clients at "/query"
//
// A client sends one QueryRequest and receives one output.Message per update until it closes the socket, which
// unsubscribes all of its queries.
type Server struct {
	logger   logger.Logger
	mux      *orchestrate.Multiplexer
	upgrader websocket.Upgrader
	clients  *xsync.MapOf[*websocket.Conn] // client ID => connection
	active   promext.RWGauge
	total    promext.RWCounter
}

// NewServer creates a relay Server on top of the given Multiplexer
func NewServer(parentLogger logger.Logger, mux *orchestrate.Multiplexer, metricFactory *base.MetricFactory) *Server {
	active := metricFactory.AddOrGetGauge("relay_clients", "Numbers of currently connected clients", nil, nil)
	active.Set(0)
	return &Server{
		logger: parentLogger.WithField(defs.LabelComponent, "RelayServer"),
		mux:    mux,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // any origin
			},
		},
		clients: xsync.NewMapOf[*websocket.Conn](),
		active:  active,
		total:   metricFactory.AddOrGetCounter("relay_clients_total", "Numbers of accepted clients", nil, nil),
	}
}

// Handler returns the HTTP handler of relay endpoints
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", srv.handleQuery)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Listen starts serving on the given address in background
func (srv *Server) Listen(address string) *http.Server {
	server := &http.Server{
		Addr:              address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: defs.RelayWriteTimeout,
	}
	go func() {
		srv.logger.Infof("listening on %s for subscribers...", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Errorf("relay listener error: %s", err.Error())
		}
	}()
	return server
}

// CloseClients closes all client connections, which unsubscribes their queries
func (srv *Server) CloseClients() {
	srv.clients.Range(func(id string, conn *websocket.Conn) bool {
		srv.logger.Infof("close client %s", id)
		conn.Close()
		return true
	})
}

func (srv *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warnf("failed to upgrade connection from %s: %s", r.RemoteAddr, err.Error())
		return
	}
	clientID := uuid.NewString()
	clogger := srv.logger.WithFields(logger.Fields{defs.LabelClient: clientID, defs.LabelAddress: r.RemoteAddr})
	srv.clients.Store(clientID, conn)
	srv.active.Inc()
	srv.total.Inc()
	defer func() {
		srv.clients.Delete(clientID)
		srv.active.Dec()
		conn.Close()
		clogger.Info("disconnected")
	}()
	clogger.Info("connected")

	var request QueryRequest
	if err := conn.ReadJSON(&request); err != nil {
		clogger.Warnf("failed to read request: %s", err.Error())
		srv.reject(conn, fmt.Errorf("invalid request: %w", err))
		return
	}
	sub, err := srv.mux.Query(request.Queries)
	if err != nil {
		clogger.Warnf("rejected request: %s", err.Error())
		srv.reject(conn, err)
		return
	}
	clogger.Infof("subscribed %d queries as %s", len(request.Queries), sub.ID())

	// the reader only waits for closing; any further message is ignored
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || util.IsNetworkClosed(err) {
					clogger.Debugf("reader ended: %s", err.Error())
				} else {
					clogger.Warnf("reader failed: %s", err.Error())
				}
				sub.Unsubscribe()
				return
			}
		}
	}()

	for update := range sub.Updates() {
		if err := conn.SetWriteDeadline(time.Now().Add(defs.RelayWriteTimeout)); err == nil {
			err = conn.WriteJSON(output.NewMessage(update))
		}
		if err != nil {
			clogger.Warnf("failed to write update: %s", err.Error())
			sub.Unsubscribe()
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defs.RelayWriteTimeout))
}

func (srv *Server) reject(conn *websocket.Conn, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(defs.RelayWriteTimeout))
	_ = conn.WriteJSON(ErrorReply{Error: err.Error()})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rejected"),
		time.Now().Add(defs.RelayWriteTimeout))
}
