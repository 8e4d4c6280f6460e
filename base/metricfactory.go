package base

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
)

// MetricFactory creates and registers Prometheus metrics with a common name prefix and fixed labels
//
// Metrics are registered to the default Prometheus registry on first creation, and later calls with the same name
// return the existing metric vector curried with the given label values.
type MetricFactory struct {
	namePrefix        string
	parentLabelNames  []string
	parentLabelValues []string
	registry          *metricRegistry // shared by sub-factories
}

type metricRegistry struct {
	lock       sync.Mutex
	collectors map[string]prometheus.Collector
}

// NewMetricFactory creates a factory with prefix for metrics names and fixed labels for all metrics created from this new factory
func NewMetricFactory(prefix string, labelNames []string, labelValues []string) *MetricFactory {
	mustMatchLabels(labelNames, labelValues)
	return &MetricFactory{
		namePrefix:        prefix,
		parentLabelNames:  labelNames,
		parentLabelValues: labelValues,
		registry: &metricRegistry{
			collectors: make(map[string]prometheus.Collector, 100),
		},
	}
}

// NewSubFactory creates a sub-factory which inherits the parent's prefix and fixed labels,
// with more prefix and fixed labels added to all metrics created from this new sub-factory
func (factory *MetricFactory) NewSubFactory(prefix string, labelNames []string, labelValues []string) *MetricFactory {
	mustMatchLabels(labelNames, labelValues)
	fullPrefix, allLabelNames, allLabelValues := factory.concatNameAndLabels(prefix, labelNames, labelValues)
	return &MetricFactory{
		namePrefix:        fullPrefix,
		parentLabelNames:  allLabelNames,
		parentLabelValues: allLabelValues,
		registry:          factory.registry,
	}
}

// AddOrGetCounter adds or gets a counter
func (factory *MetricFactory) AddOrGetCounter(name string, help string, labelNames []string, labelValues []string) promext.RWCounter {
	mustMatchLabels(labelNames, labelValues)
	return factory.AddOrGetCounterVec(name, help, labelNames, labelValues).WithLabelValues()
}

// AddOrGetCounterVec adds or gets a counter-vec with leftmost label values
func (factory *MetricFactory) AddOrGetCounterVec(name string, help string, labelNames []string, leftmostLabelValues []string) *promext.RWCounterVec {
	fullName, allLabelNames, allLeftmostLabelValues := factory.concatNameAndLabels(name, labelNames, leftmostLabelValues)
	vec := addOrGetCollector(factory.registry, fullName, func() *promext.RWCounterVec {
		opts := prometheus.CounterOpts{}
		opts.Name = fullName
		opts.Help = help
		return promext.NewRWCounterVec(opts, allLabelNames)
	})
	curried, err := vec.CurryWith(buildLabels(allLabelNames, allLeftmostLabelValues))
	if err != nil {
		logger.Panicf("failed to curry counter-vec '%s': %s", fullName, err.Error())
	}
	return curried
}

// AddOrGetGauge adds or gets a gauge
//
// Gauges must be updated by Add/Sub not Set, because there could be multiple updaters
func (factory *MetricFactory) AddOrGetGauge(name string, help string, labelNames []string, labelValues []string) promext.RWGauge {
	mustMatchLabels(labelNames, labelValues)
	return factory.AddOrGetGaugeVec(name, help, labelNames, labelValues).WithLabelValues()
}

// AddOrGetGaugeVec adds or gets a gauge-vec with leftmost label values
func (factory *MetricFactory) AddOrGetGaugeVec(name string, help string, labelNames []string, leftmostLabelValues []string) *promext.RWGaugeVec {
	fullName, allLabelNames, allLeftmostLabelValues := factory.concatNameAndLabels(name, labelNames, leftmostLabelValues)
	vec := addOrGetCollector(factory.registry, fullName, func() *promext.RWGaugeVec {
		opts := prometheus.GaugeOpts{}
		opts.Name = fullName
		opts.Help = help
		return promext.NewRWGaugeVec(opts, allLabelNames)
	})
	curried, err := vec.CurryWith(buildLabels(allLabelNames, allLeftmostLabelValues))
	if err != nil {
		logger.Panicf("failed to curry gauge-vec '%s': %s", fullName, err.Error())
	}
	return curried
}

// DumpMetrics dumps all metrics created in this factory and derived sub-factories into the .prom text format without comments
//
// For testing only
func (factory *MetricFactory) DumpMetrics(includeZeroValues bool) (string, error) {
	gatherer := prometheus.NewPedanticRegistry()
	factory.registry.lock.Lock()
	for name, collector := range factory.registry.collectors {
		if !strings.HasPrefix(name, factory.namePrefix) {
			continue
		}
		if err := gatherer.Register(collector); err != nil {
			factory.registry.lock.Unlock()
			return "", fmt.Errorf("failed to add metric '%s' to gatherer: %w", name, err)
		}
	}
	factory.registry.lock.Unlock()

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}
	writer := &bytes.Buffer{}
	for _, mf := range metricFamilies {
		if _, err := expfmt.MetricFamilyToText(writer, mf); err != nil {
			return "", fmt.Errorf("failed to export '%s': %w", mf.GetName(), err)
		}
	}
	lines := strings.Split(writer.String(), "\n")
	linesFiltered := make([]string, 0, len(lines)/2)
	for _, ln := range lines {
		if strings.HasPrefix(ln, "#") {
			continue
		}
		if !includeZeroValues && strings.HasSuffix(ln, " 0") {
			continue
		}
		linesFiltered = append(linesFiltered, ln)
	}
	return strings.Join(linesFiltered, "\n"), nil
}

func (factory *MetricFactory) concatNameAndLabels(name string, labelNames []string, leftmostLabelValues []string) (string, []string, []string) {
	if len(labelNames) < len(leftmostLabelValues) {
		logger.Panicf("more leftmostLabelValues (%s) than labelNames (%s)",
			strings.Join(leftmostLabelValues, ","), strings.Join(labelNames, ","))
	}
	fullName := factory.namePrefix + name
	allLabelNames := append(append([]string(nil), factory.parentLabelNames...), labelNames...)
	allLeftmostLabelValues := append(append([]string(nil), factory.parentLabelValues...), leftmostLabelValues...)
	return fullName, allLabelNames, allLeftmostLabelValues
}

// addOrGetCollector looks up a collector by full name or creates and registers a new one
func addOrGetCollector[C prometheus.Collector](registry *metricRegistry, fullName string, create func() C) C {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	if existing, ok := registry.collectors[fullName]; ok {
		collector, typeOK := existing.(C)
		if !typeOK {
			logger.Panicf("metric '%s' has been registered as %T", fullName, existing)
		}
		return collector
	}
	collector := create()
	if err := prometheus.Register(collector); err != nil {
		logger.Panicf("failed to register '%s': %s", fullName, err.Error())
	}
	registry.collectors[fullName] = collector
	return collector
}

func mustMatchLabels(labelNames []string, labelValues []string) {
	if len(labelNames) != len(labelValues) {
		logger.Panicf("different lengths of labelNames (%s) and labelValues (%s)",
			strings.Join(labelNames, ","), strings.Join(labelValues, ","))
	}
}

func buildLabels(labelNames []string, leftmostLabelValues []string) map[string]string {
	labelMap := make(map[string]string, len(leftmostLabelValues))
	for i, value := range leftmostLabelValues {
		labelMap[labelNames[i]] = value
	}
	return labelMap
}
