package util

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsMux(t *testing.T) {
	server := httptest.NewServer(NewMetricsMux())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/metrics")
	if assert.NoError(t, err) {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, 200, resp.StatusCode)
		assert.Contains(t, string(body), "go_goroutines")
	}

	resp, err = server.Client().Get(server.URL + "/nothing")
	if assert.NoError(t, err) {
		resp.Body.Close()
		assert.Equal(t, 404, resp.StatusCode)
	}

	assert.Nil(t, LaunchMetricsListener(""))
}
