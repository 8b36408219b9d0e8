package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/impact-predictor/internal/logging"
	"github.com/signalsfoundry/impact-predictor/model"
)

// Span names used by the engine.
const (
	SpanPredict = "predictor.compute"
	SpanImpact  = "recorder.impact"
)

const (
	tracerName          = "github.com/signalsfoundry/impact-predictor"
	defaultOTLPEndpoint = "localhost:4317"
)

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64

	// Writer receives stdout exporter output. Nil means stderr, which keeps
	// spans out of the runner's report on stdout.
	Writer io.Writer

	// Scenario is attached to every span as fallsim.* resource attributes.
	Scenario map[string]string
}

// TracingConfigFromEnv pulls tracing configuration from FALLSIM_TRACING_*
// variables. FALLSIM_TRACING_ATTRIBUTES takes comma separated key=value pairs.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("FALLSIM_TRACING_ENABLED"), "true"),
		ServiceName: "fallsim",
		Exporter:    "stdout",
		Endpoint:    os.Getenv("FALLSIM_OTLP_ENDPOINT"),
		SampleRatio: 1,
		Scenario:    parseAttributes(os.Getenv("FALLSIM_TRACING_ATTRIBUTES")),
	}
	if v := strings.ToLower(os.Getenv("FALLSIM_TRACING_EXPORTER")); v != "" {
		cfg.Exporter = v
	}
	if v := os.Getenv("FALLSIM_TRACING_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if raw := os.Getenv("FALLSIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			cfg.SampleRatio = parsed
		}
	}
	return cfg
}

// WithScenario returns a copy of cfg with key=value added to the scenario
// attributes. Empty values are skipped.
func (cfg TracingConfig) WithScenario(key, value string) TracingConfig {
	if key == "" || value == "" {
		return cfg
	}
	next := make(map[string]string, len(cfg.Scenario)+1)
	for k, v := range cfg.Scenario {
		next[k] = v
	}
	next[key] = value
	cfg.Scenario = next
	return cfg
}

func parseAttributes(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// resourceAttributes lists the service identity followed by the scenario
// attributes in key order.
func resourceAttributes(cfg TracingConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "impact-predictor"),
	}
	keys := make([]string, 0, len(cfg.Scenario))
	for k := range cfg.Scenario {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String("fallsim."+k, cfg.Scenario[k]))
	}
	return attrs
}

// InitTracing installs the global tracer provider described by cfg and returns
// a shutdown function that flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
		logging.Int("scenario_attributes", len(cfg.Scenario)),
	)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// StartSpan starts an internal span on the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// PredictionAttributes describes a prediction result on a span.
func PredictionAttributes(p model.PredictionResult) []attribute.KeyValue {
	if !p.Valid {
		return []attribute.KeyValue{attribute.Bool("prediction.valid", false)}
	}
	return []attribute.KeyValue{
		attribute.Bool("prediction.valid", true),
		attribute.Float64("prediction.tti_s", p.TimeToImpact),
		attribute.Float64("prediction.energy_j", p.ImpactEnergyJ),
		attribute.String("prediction.risk_level", p.RiskLevel.String()),
		attribute.Float64("prediction.drift_m", p.DriftRadiusM),
	}
}

// ImpactAttributes describes a comparison record on a span.
func ImpactAttributes(r model.ImpactComparisonRecord) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("episode_id", r.EpisodeID),
		attribute.String("impact.source", string(r.Source)),
		attribute.Float64("impact.time_error_s", r.TimeErrorS()),
		attribute.Float64("impact.position_error_m", r.PositionErrorM),
	}
}

// ShutdownWithTimeout invokes the provided shutdown function with a bounded
// timeout, swallowing errors in the shutdown path.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
