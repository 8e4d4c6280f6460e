package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type yamlTestSource struct {
	Address string
	Timeout time.Duration
	Level   yamlTestLevel
}

type yamlTestLevel string

func (level *yamlTestLevel) UnmarshalYAML(node *yaml.Node) error {
	if node.Value != "low" && node.Value != "high" {
		return NewYamlError(node, "unknown level "+node.Value)
	}
	*level = yamlTestLevel(node.Value)
	return nil
}

func TestYamlMarshal(t *testing.T) {
	y, err := MarshalYaml(&yamlTestSource{Address: "http://x", Level: "low"})
	require.NoError(t, err)
	assert.Equal(t, "address: http://x\ntimeout: 0s\nlevel: low\n", y)
}

func TestYamlUnmarshal(t *testing.T) {
	var src yamlTestSource
	require.NoError(t, UnmarshalYamlString("address: http://x\ntimeout: 3s\nlevel: high\n", &src))
	assert.Equal(t, yamlTestSource{Address: "http://x", Timeout: 3 * time.Second, Level: "high"}, src)

	assert.EqualError(t, UnmarshalYamlString("address: http://x\nlevel: mid\n", &src), "yaml line 2:8: unknown level mid")
	assert.ErrorContains(t, UnmarshalYamlString("address: http://x\nport: 80\n", &src), "field port not found")
}

func TestYamlUnmarshalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.yml")
	require.NoError(t, os.WriteFile(path, []byte("level: mid\n"), 0644))

	var src yamlTestSource
	assert.EqualError(t, UnmarshalYamlFile(path, &src), path+": yaml line 1:8: unknown level mid")
	assert.Error(t, UnmarshalYamlFile(filepath.Join(t.TempDir(), "missing.yml"), &src))
}
