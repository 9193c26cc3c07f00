package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus registers metrics lazily on first use.
type Prometheus struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector. A nil registry means prometheus.DefaultRegisterer.
func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (p *Prometheus) IncCounter(name string, delta int64) {
	lookup(p, p.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name})
	}).Add(float64(delta))
}

func (p *Prometheus) SetGauge(name string, value int64) {
	lookup(p, p.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: name})
	}).Set(float64(value))
}

func (p *Prometheus) ObserveHistogram(name string, value float64) {
	lookup(p, p.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		})
	}).Observe(value)
}

func lookup[M prometheus.Collector](p *Prometheus, set map[string]M, name string, create func() M) M {
	p.mu.RLock()
	m, ok := set[name]
	p.mu.RUnlock()
	if ok {
		return m
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok = set[name]; ok {
		return m
	}

	m = create()
	if err := p.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
	}
	set[name] = m
	return m
}
