// Package source opens NDJSON streams from HTTP stream producers
package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/util"
)

// HTTPSource opens one streaming GET request per query
//
// Only connecting is subject to timeout: once response headers are received, the body is read until end of stream or
// cancellation.
type HTTPSource struct {
	logger   logger.Logger
	client   *http.Client
	address  *url.URL
	routes   []route
	requests *promext.RWCounterVec
}

// NewHTTPSource creates a HTTPSource from verified config
func NewHTTPSource(parentLogger logger.Logger, cfg Config, metricFactory *base.MetricFactory) (*HTTPSource, error) {
	address, err := parseAddress(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf(".address: %w", err)
	}
	routes, err := cfg.compileRoutes()
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = defs.SourceConnectTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true, // gzip is requested and decoded in Open
	}
	return &HTTPSource{
		logger:   parentLogger.WithFields(logger.Fields{defs.LabelComponent: "HTTPSource", defs.LabelAddress: address.String()}),
		client:   &http.Client{Transport: transport},
		address:  address,
		routes:   routes,
		requests: metricFactory.AddOrGetCounterVec("source_requests_total", "Numbers of stream requests by result", []string{"result"}, nil),
	}, nil
}

// Open implements base.OpenConnectionFunc
//
// Failures are wrapped in base.ErrTransport. The request is aborted when ctx is cancelled, including reading of body.
func (src *HTTPSource) Open(ctx context.Context, desc base.QueryDescriptor) (base.Connection, error) {
	requestURL := src.BuildURL(desc)
	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", base.ErrTransport, err.Error())
	}
	rq.Header.Set("Accept", "application/x-ndjson, application/json")
	rq.Header.Set("Accept-Encoding", "gzip")

	src.logger.Debugf("GET %s", requestURL)
	resp, err := src.client.Do(rq)
	if err != nil {
		src.requests.WithLabelValues(requestErrorResult(err)).Inc()
		return nil, fmt.Errorf("%w: %s", base.ErrTransport, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		src.requests.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("%w: got a status %d with body %s", base.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	conn := &httpConnection{
		reader: resp.Body,
	}
	conn.close = util.NewRunOnce(func() { resp.Body.Close() })
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			conn.Close()
			src.requests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: invalid gzip stream: %s", base.ErrTransport, gzErr.Error())
		}
		conn.reader = gz
	}
	src.requests.WithLabelValues("ok").Inc()
	return conn, nil
}

// BuildURL builds the request URL of the given query
//
// Time range and max-points are only included when supplied.
func (src *HTTPSource) BuildURL(desc base.QueryDescriptor) string {
	u := *src.AddressFor(desc.Key())
	query := u.Query()
	query.Set(defs.ParamPanelID, strconv.FormatInt(desc.PanelID, 10))
	query.Set(defs.ParamRefID, desc.QueryID)
	query.Set(defs.ParamDataRows, strings.Join(desc.Fields, ","))
	if desc.TimeRange != nil {
		query.Set(defs.ParamStart, strconv.FormatInt(desc.TimeRange.From.UnixMilli(), 10))
		query.Set(defs.ParamEnd, strconv.FormatInt(desc.TimeRange.To.UnixMilli(), 10))
	}
	if desc.MaxPoints > 0 {
		query.Set(defs.ParamDatapoints, strconv.Itoa(desc.MaxPoints))
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// AddressFor returns the producer address of the given session key, by the first matching route or default
func (src *HTTPSource) AddressFor(key base.SessionKey) *url.URL {
	keyStr := key.String()
	for _, r := range src.routes {
		if r.matcher.Match(keyStr) {
			return r.address
		}
	}
	return src.address
}

// TestConnection checks whether the default producer is reachable by one GET request
//
// Any HTTP response below 500 counts as reachable, since producers may not serve anything without query parameters.
func (src *HTTPSource) TestConnection(ctx context.Context) base.ConnectionStatus {
	ctx, cancel := context.WithTimeout(ctx, defs.ProbeTimeout)
	defer cancel()

	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, src.address.String(), nil)
	if err != nil {
		return base.ConnectionStatus{Status: base.StatusFailure, Message: err.Error()}
	}
	resp, err := src.client.Do(rq)
	if err != nil {
		src.logger.Warnf("connection test failed: %s", err.Error())
		return base.ConnectionStatus{Status: base.StatusFailure, Message: err.Error()}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return base.ConnectionStatus{Status: base.StatusFailure, Message: fmt.Sprintf("got a status %d", resp.StatusCode)}
	}
	return base.ConnectionStatus{Status: base.StatusSuccess, Message: fmt.Sprintf("Data source is working (status %d)", resp.StatusCode)}
}

// Address returns the default producer address
func (src *HTTPSource) Address() string {
	return src.address.String()
}

func requestErrorResult(err error) string {
	switch {
	case util.IsCancellation(err):
		return "cancelled"
	case util.IsNetworkTimeout(err):
		return "timeout"
	case util.IsNetworkError(err):
		return "network"
	default:
		return "error"
	}
}

// httpConnection is the streaming body of a response
type httpConnection struct {
	reader io.Reader // body or gzip reader on body
	close  util.RunOnce
}

func (conn *httpConnection) Read(p []byte) (int, error) {
	return conn.reader.Read(p)
}

func (conn *httpConnection) Close() {
	conn.close()
}
