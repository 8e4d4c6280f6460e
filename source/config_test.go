package source

import (
	"testing"
	"time"

	"github.com/relex/streamchart/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigUnmarshal(t *testing.T) {
	var cfg Config
	require.NoError(t, util.UnmarshalYamlString(`address: http://localhost:8080/stream
connectTimeout: 2s
routes:
  - match: "1/*"
    address: http://localhost:8081/
`, &cfg))
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, []RouteConfig{{Match: "1/*", Address: "http://localhost:8081/"}}, cfg.Routes)
	assert.NoError(t, cfg.Verify())
}

func TestConfigUnmarshalInvalidRoute(t *testing.T) {
	var cfg Config
	assert.EqualError(t, util.UnmarshalYamlString(`address: http://localhost:8080/stream
routes:
  - abc
`, &cfg), "yaml line 3:5: route must be a mapping")
}
