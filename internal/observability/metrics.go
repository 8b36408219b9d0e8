package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/impact-predictor/model"
)

// PredictionCollector bundles Prometheus metrics for predictions, ground
// probing, confirmed impacts and the gRPC surface.
type PredictionCollector struct {
	gatherer prometheus.Gatherer

	Predictions    *prometheus.CounterVec
	TimeToImpact   prometheus.Histogram
	ImpactEnergy   prometheus.Histogram
	LastRisk       prometheus.Gauge
	GroundProbes   *prometheus.CounterVec
	Impacts        *prometheus.CounterVec
	PositionErrors prometheus.Histogram
	TimeErrors     prometheus.Histogram

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewPredictionCollector registers metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Registering twice
// against the same registry reuses the existing collectors.
func NewPredictionCollector(reg prometheus.Registerer) (*PredictionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	predictions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallsim_predictions_total",
		Help: "Predictions computed, labeled by validity and risk level.",
	}, []string{"result", "risk_level"}), "fallsim_predictions_total")
	if err != nil {
		return nil, err
	}

	tti, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallsim_time_to_impact_seconds",
		Help:    "Predicted time to impact of valid predictions.",
		Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 3, 4, 6, 8, 12},
	}), "fallsim_time_to_impact_seconds")
	if err != nil {
		return nil, err
	}

	energy, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallsim_impact_energy_joules",
		Help:    "Predicted impact energy of valid predictions.",
		Buckets: []float64{10, 50, 100, 200, 400, 600, 800, 1200, 2000, 5000},
	}), "fallsim_impact_energy_joules")
	if err != nil {
		return nil, err
	}

	lastRisk, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fallsim_last_risk01",
		Help: "Continuous risk of the most recent valid prediction.",
	}), "fallsim_last_risk01")
	if err != nil {
		return nil, err
	}

	probes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallsim_ground_probe_total",
		Help: "Ground height resolutions, labeled by outcome (hit, cached, floor).",
	}, []string{"outcome"}), "fallsim_ground_probe_total")
	if err != nil {
		return nil, err
	}

	impacts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallsim_impacts_total",
		Help: "Confirmed impacts, labeled by detection source.",
	}, []string{"source"}), "fallsim_impacts_total")
	if err != nil {
		return nil, err
	}

	posErr, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallsim_impact_position_error_meters",
		Help:    "Planar distance between predicted and actual impact points.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	}), "fallsim_impact_position_error_meters")
	if err != nil {
		return nil, err
	}

	timeErr, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fallsim_impact_time_error_seconds",
		Help:    "Absolute difference between actual and predicted time to impact.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "fallsim_impact_time_error_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallsim_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "fallsim_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fallsim_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "fallsim_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &PredictionCollector{
		gatherer:       gatherer,
		Predictions:    predictions,
		TimeToImpact:   tti,
		ImpactEnergy:   energy,
		LastRisk:       lastRisk,
		GroundProbes:   probes,
		Impacts:        impacts,
		PositionErrors: posErr,
		TimeErrors:     timeErr,
		RPCRequests:    requests,
		RPCDurations:   durations,
	}, nil
}

// ObservePrediction records one prediction. Invalid results only bump the
// counter since their other fields are undefined.
func (c *PredictionCollector) ObservePrediction(p model.PredictionResult) {
	if c == nil {
		return
	}
	if !p.Valid {
		c.Predictions.WithLabelValues("invalid", "none").Inc()
		return
	}
	c.Predictions.WithLabelValues("valid", strings.ToLower(p.RiskLevel.String())).Inc()
	c.TimeToImpact.Observe(p.TimeToImpact)
	c.ImpactEnergy.Observe(p.ImpactEnergyJ)
	c.LastRisk.Set(p.Risk01)
}

// ObserveProbe counts a ground height resolution outcome.
func (c *PredictionCollector) ObserveProbe(outcome string) {
	if c == nil {
		return
	}
	c.GroundProbes.WithLabelValues(outcome).Inc()
}

// ObserveImpact records a comparison record.
func (c *PredictionCollector) ObserveImpact(r model.ImpactComparisonRecord) {
	if c == nil {
		return
	}
	c.Impacts.WithLabelValues(string(r.Source)).Inc()
	c.PositionErrors.Observe(r.PositionErrorM)
	te := r.TimeErrorS()
	if te < 0 {
		te = -te
	}
	c.TimeErrors.Observe(te)
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *PredictionCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		c.RPCRequests.WithLabelValues(service, method, code).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PredictionCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
