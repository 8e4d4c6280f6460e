package run

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/testdata"
	"github.com/relex/streamchart/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T, metricPrefix string, address string, queries []base.QueryDescriptor) *Loader {
	cfg, err := LoadConfigFile(testdata.GetConfigPath())
	require.NoError(t, err)
	cfg.Source.Address = address
	cfg.Source.Routes = nil
	cfg.Queries = queries
	loader, err := NewLoader(testdata.GetConfigPath(), *cfg, base.NewMetricFactory(metricPrefix, nil, nil))
	require.NoError(t, err)
	return loader
}

// queryOfStream finds the sample query by stream title, e.g. "p1-A" for query "A" of panel 1
func queryOfStream(t *testing.T, title string) base.QueryDescriptor {
	key, err := base.ParseSessionKey(strings.Replace(strings.TrimPrefix(title, "p"), "-", "/", 1))
	require.NoError(t, err)
	cfg, err := LoadConfigFile(testdata.GetConfigPath())
	require.NoError(t, err)
	for _, desc := range cfg.Queries {
		if desc.Key() == key {
			return desc
		}
	}
	require.Fail(t, "no query for stream "+title)
	return base.QueryDescriptor{}
}

func TestStreamSamples(t *testing.T) {
	for i, inputPath := range testdata.ListInputFiles(t, "*") {
		title := testdata.GetInputTitle(t, inputPath)
		t.Run(title, func(t *testing.T) {
			input, err := os.ReadFile(inputPath)
			require.NoError(t, err)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/x-ndjson")
				_, _ = w.Write(input)
			}))
			defer server.Close()

			prefix := fmt.Sprintf("teststreamsample%d_", i)
			loader := newTestLoader(t, prefix, server.URL, []base.QueryDescriptor{queryOfStream(t, title)})
			out := &bytes.Buffer{}
			require.NoError(t, loader.Stream(out, nil))

			outputPath := testdata.GetOutputFilename(t, inputPath)
			if util.IsTestGenerationMode() {
				require.NoError(t, os.WriteFile(outputPath, out.Bytes(), 0644))
				return
			}
			expected, err := os.ReadFile(outputPath)
			require.NoError(t, err)
			assert.Equal(t, string(expected), out.String())
			assert.Zero(t, loader.Registry.Len())

			metrics, err := loader.MetricFactory.DumpMetrics(false)
			require.NoError(t, err)
			assert.Contains(t, metrics, prefix+`session_sessions_total{result="drained"} 1`)
			assert.Contains(t, metrics, prefix+`session_errors_total{type="parse"} 1`)
		})
	}
}

func TestStreamStopBySignal(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"panelid":1,"refid":"A","values":{"timestamp":1600000000000,"cpu":1,"mem":2}}` + "\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	loader := newTestLoader(t, "teststreamstop_", server.URL, []base.QueryDescriptor{queryOfStream(t, "p1-A")})
	stop := make(chan os.Signal, 1)
	out := &bytes.Buffer{}
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- loader.Stream(out, stop)
	}()

	time.Sleep(200 * time.Millisecond)
	stop <- os.Interrupt
	select {
	case err := <-streamErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "stream not stopped")
	}
	assert.Equal(t, `{"panelId":1,"queryId":"A","state":"streaming","entries":[{"t":1600000000000,"v":[1,2]}]}`+"\n", out.String())
	assert.Zero(t, loader.Registry.Len())
}

func TestStreamNoQueries(t *testing.T) {
	loader := newTestLoader(t, "teststreamnoquery_", "http://localhost:1/", nil)
	assert.EqualError(t, loader.Stream(&bytes.Buffer{}, nil), "no queries")
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	loader := newTestLoader(t, "testprobe_", server.URL, nil)
	out := &bytes.Buffer{}
	result := loader.Probe(context.Background(), out)
	assert.Equal(t, base.StatusSuccess, result.Status)
	assert.Equal(t, `{"status":"success","message":"Data source is working (status 200)"}`+"\n", out.String())
}
