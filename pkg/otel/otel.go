package otel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// ServiceMatchingEngine is the default service name reported to the collector
	ServiceMatchingEngine = "limitbook"

	instrumentationName = "github.com/erain9/limitbook/pkg/otel"
)

var (
	mu             sync.RWMutex
	engineTracer   trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	ExportInterval   time.Duration
	CollectorEnabled bool
}

// Init wires OTLP trace and metric exporters to the collector. With the
// collector disabled it only installs the propagator, leaving the global
// no-op providers in place. The returned function flushes and shuts down
// whatever was started.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceMatchingEngine
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ExportInterval == 0 {
		cfg.ExportInterval = 5 * time.Second
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if !cfg.CollectorEnabled {
		return func() {}, nil
	}

	conn, err := grpc.NewClient(cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector connection: %w", err)
	}

	resource := initResource(cfg.ServiceName, cfg.ServiceVersion)
	var cleanup []func(context.Context) error

	tp, err := initTracerProvider(conn, resource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer provider, continuing without traces")
	} else {
		cleanup = append(cleanup, tp.Shutdown)
	}

	mp, err := initMeterProvider(conn, resource, cfg.ExportInterval)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
	} else {
		cleanup = append(cleanup, mp.Shutdown)
	}

	mu.Lock()
	tracerProvider = tp
	meterProvider = mp
	if tp != nil {
		engineTracer = tp.Tracer(instrumentationName)
	}
	mu.Unlock()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		for _, fn := range cleanup {
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Msg("Error shutting down telemetry provider")
			}
		}
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing collector connection")
		}
	}, nil
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create resource")
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(
		sdkresource.Default(),
		extraResources,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to merge resources")
		return sdkresource.Default()
	}

	return resource
}

func initTracerProvider(conn *grpc.ClientConn, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(1),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMeterProvider(conn *grpc.ClientConn, resource *sdkresource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(resource),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// GetMatchingEngineTracer returns the tracer for the matching engine. Before
// Init it falls back to the global provider, which is a no-op by default.
func GetMatchingEngineTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if engineTracer != nil {
		return engineTracer
	}
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// GetTextMapPropagator returns the configured propagator
func GetTextMapPropagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// GetMeterProvider returns the exporting meter provider, or the global one
// before Init
func GetMeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	if meterProvider != nil {
		return meterProvider
	}
	return otel.GetMeterProvider()
}

// InitForTesting installs tracer as the matching engine tracer
func InitForTesting(tracer trace.Tracer) {
	mu.Lock()
	defer mu.Unlock()
	engineTracer = tracer
}

// ResetForTesting drops any tracer installed by Init or InitForTesting
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	engineTracer = nil
	tracerProvider = nil
	meterProvider = nil
}
