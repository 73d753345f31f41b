package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings controls trace export.
type Settings struct {
	Endpoint    string  `env:"OKR_OTEL_ENDPOINT"`
	Enabled     string  `env:"OKR_OTEL_ENABLED"`
	SampleRatio float64 `env:"OKR_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadSettings reads tracing settings from the environment.
func LoadSettings() (Settings, error) {
	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse otel env: %w", err)
	}
	return settings, nil
}

func (s Settings) active() bool {
	if strings.EqualFold(strings.TrimSpace(s.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(s.Endpoint) != ""
}

func (s Settings) sampler() sdktrace.Sampler {
	if s.SampleRatio <= 0 || s.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))
}

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when OKR_OTEL_ENDPOINT is empty or OKR_OTEL_ENABLED is
// "false", Setup returns a no-op shutdown function and no global provider is
// registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	settings, err := LoadSettings()
	if err != nil {
		return noop, err
	}
	if !settings.active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(settings.Endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(settings.sampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
