package run

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/output"
	"github.com/relex/streamchart/source"
	"github.com/relex/streamchart/util"
)

// Config defines the root of streamchart config file
type Config struct {
	Source  source.Config          `yaml:"source"`
	Buffer  BufferConfig           `yaml:"buffer"`
	Output  OutputConfig           `yaml:"output"`
	Queries []base.QueryDescriptor `yaml:"queries"`
}

// BufferConfig defines the limits of session buffers
type BufferConfig struct {
	Capacity    int               `yaml:"capacity"`    // max entries per session, 0 = defs.BufferDefaultCapacity
	MaxLineSize datasize.ByteSize `yaml:"maxLineSize"` // max length of one stream line, 0 = defs.ReframerMaxLineBytes
}

// OutputConfig defines how updates are written by the "run" command
type OutputConfig struct {
	Format string `yaml:"format"` // json or msgpack, default json
}

// LoadConfigFile loads config from the path and verifies all configurations
func LoadConfigFile(filepath string) (*Config, error) {
	cref := &Config{}
	if err := util.UnmarshalYamlFile(filepath, cref); err != nil {
		return nil, err
	}
	if err := cref.Verify(); err != nil {
		return nil, err
	}
	return cref, nil
}

// Verify checks the config for missing or malformed properties
func (cfg *Config) Verify() error {
	if err := cfg.Source.Verify(); err != nil {
		return fmt.Errorf("source%w", err)
	}
	if err := cfg.Buffer.Verify(); err != nil {
		return fmt.Errorf("buffer%w", err)
	}
	if len(cfg.Output.Format) > 0 {
		if err := output.VerifyFormat(cfg.Output.Format); err != nil {
			return fmt.Errorf("output.format: %w", err)
		}
	}
	keys := make(map[base.SessionKey]int, len(cfg.Queries))
	for i, desc := range cfg.Queries {
		if err := desc.Verify(); err != nil {
			return fmt.Errorf("queries[%d]%w", i, err)
		}
		if first, dup := keys[desc.Key()]; dup {
			return fmt.Errorf("queries[%d]: key %s is already used by queries[%d]", i, desc.Key(), first)
		}
		keys[desc.Key()] = i
	}
	return nil
}

// Verify checks buffer limits
func (cfg BufferConfig) Verify() error {
	if cfg.Capacity < 0 {
		return fmt.Errorf(".capacity is negative: %d", cfg.Capacity)
	}
	if cfg.MaxLineSize > 0 && cfg.MaxLineSize < 64*datasize.B {
		return fmt.Errorf(".maxLineSize is too small: %s", cfg.MaxLineSize.HR())
	}
	if cfg.MaxLineSize > datasize.GB {
		return fmt.Errorf(".maxLineSize is too large: %s", cfg.MaxLineSize.HR())
	}
	return nil
}

// CapacityOrDefault returns the effective buffer capacity
func (cfg BufferConfig) CapacityOrDefault() int {
	if cfg.Capacity == 0 {
		return defs.BufferDefaultCapacity
	}
	return cfg.Capacity
}

// MaxLineLengthOrDefault returns the effective max line length in bytes
func (cfg BufferConfig) MaxLineLengthOrDefault() int {
	if cfg.MaxLineSize == 0 {
		return defs.ReframerMaxLineBytes
	}
	return int(cfg.MaxLineSize.Bytes())
}
