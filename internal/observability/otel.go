package observability

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

// Config identifies the service in emitted traces.
type Config struct {
	ServiceName string
	Environment string
}

var (
	initOnce sync.Once
	shutdown func(context.Context) error
)

// Init installs the global tracer provider. Tracing is off unless
// OTEL_ENABLED is set; with no OTLP endpoint configured spans go to a stdout
// exporter, so no external backend is required. Returns the shutdown hook,
// nil when tracing is disabled.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	initOnce.Do(func() {
		if !tracingEnabled() {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "adbroll-backend"
		}

		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		))
		if err != nil && log != nil {
			log.Warn("Otel resource init failed, continuing", "error", err)
		}

		exporter, err := newTraceExporter(ctx, log)
		if err != nil {
			if log != nil {
				log.Warn("Otel exporter init failed, tracing disabled", "error", err)
			}
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		if log != nil {
			log.Info("Otel tracing initialized", "service", serviceName, "endpoint", traceEndpoint())
		}
	})
	return shutdown
}

func tracingEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func traceEndpoint() string {
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

// sampleRatio reads OTEL_SAMPLER_RATIO clamped to [0, 1], defaulting to 0.1.
func sampleRatio() float64 {
	raw := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO"))
	if raw == "" {
		return 0.1
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func newTraceExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	if endpoint := traceEndpoint(); endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecureExporter() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	if log != nil {
		log.Warn("Otel using stdout exporter, no OTLP endpoint configured")
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func insecureExporter() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
