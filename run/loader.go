package run

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/orchestrate"
	"github.com/relex/streamchart/relay"
	"github.com/relex/streamchart/source"
	"github.com/relex/streamchart/util"
)

// Loader loads configuration from file and prepares the components to be launched
//
// Loader should take care of everything derived from the config file, but not start anything automatically
type Loader struct {
	filepath string // config file path

	Config
	MetricFactory *base.MetricFactory
	Source        *source.HTTPSource
	Registry      *orchestrate.Registry
	Multiplexer   *orchestrate.Multiplexer
}

// NewLoaderFromConfigFile loads and verifies the config file and creates all components
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, configErr := LoadConfigFile(filepath)
	if configErr != nil {
		return nil, configErr
	}
	return NewLoader(filepath, *config, base.NewMetricFactory(metricPrefix, nil, nil))
}

// NewLoader creates all components from verified config
func NewLoader(filepath string, config Config, metricFactory *base.MetricFactory) (*Loader, error) {
	if dump, err := util.MarshalYaml(config); err == nil {
		logger.Debugf("effective config from %s:\n%s", filepath, dump)
	}
	src, srcErr := source.NewHTTPSource(logger.Root(), config.Source, metricFactory)
	if srcErr != nil {
		return nil, srcErr
	}
	registry := orchestrate.NewRegistry(logger.Root(), metricFactory)
	mux := orchestrate.NewMultiplexer(logger.Root(), registry, src.Open, orchestrate.SessionOptions{
		BufferCapacity: config.Buffer.CapacityOrDefault(),
		MaxLineLength:  config.Buffer.MaxLineLengthOrDefault(),
		ReportError:    newErrorLogger(),
	}, metricFactory)

	return &Loader{
		filepath: filepath,

		Config:        config,
		MetricFactory: metricFactory,
		Source:        src,
		Registry:      registry,
		Multiplexer:   mux,
	}, nil
}

// Subscribe submits all queries from the config file
func (loader *Loader) Subscribe() (*orchestrate.Subscription, error) {
	return loader.Multiplexer.Query(loader.Queries)
}

// NewRelay creates a WebSocket relay for client-submitted queries
func (loader *Loader) NewRelay() *relay.Server {
	return relay.NewServer(logger.Root(), loader.Multiplexer, loader.MetricFactory)
}

// newErrorLogger creates a reporter which logs errors at debug level with the session key
//
// Sessions already log them as warnings; this is for tracing by key in verbose mode
func newErrorLogger() base.ErrorReporter {
	elogger := logger.WithField(defs.LabelComponent, "ErrorReporter")
	return func(key base.SessionKey, err error) {
		elogger.WithField(defs.LabelKey, key.String()).Debug(err.Error())
	}
}
