package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoopCollector exposes metrics for the simulation tick loop.
type LoopCollector struct {
	gatherer prometheus.Gatherer

	TickDuration       prometheus.Histogram
	TicksTotal         prometheus.Counter
	TickErrorsTotal    prometheus.Counter
	GroundCacheEntries prometheus.Gauge
}

// NewLoopCollector registers tick loop metrics against the provided registerer.
func NewLoopCollector(reg prometheus.Registerer) (*LoopCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallsim_tick_duration_seconds",
		Help:    "Wall time spent evaluating one simulation tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "fallsim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fallsim_ticks_total",
		Help: "Simulation ticks evaluated.",
	}), "fallsim_ticks_total")
	if err != nil {
		return nil, err
	}

	tickErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fallsim_tick_errors_total",
		Help: "Simulation ticks that failed to assemble a state.",
	}), "fallsim_tick_errors_total")
	if err != nil {
		return nil, err
	}

	cacheEntries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fallsim_ground_cache_entries",
		Help: "Terrain cells currently held by the ground probe cache.",
	}), "fallsim_ground_cache_entries")
	if err != nil {
		return nil, err
	}

	return &LoopCollector{
		gatherer:           gatherer,
		TickDuration:       tickHistogram,
		TicksTotal:         ticks,
		TickErrorsTotal:    tickErrors,
		GroundCacheEntries: cacheEntries,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *LoopCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one tick and whether it failed.
func (c *LoopCollector) ObserveTick(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.TicksTotal.Inc()
	c.TickDuration.Observe(d.Seconds())
	if err != nil {
		c.TickErrorsTotal.Inc()
	}
}

// SetGroundCacheEntries updates the terrain cache size gauge.
func (c *LoopCollector) SetGroundCacheEntries(n int) {
	if c == nil || c.GroundCacheEntries == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	c.GroundCacheEntries.Set(float64(n))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
