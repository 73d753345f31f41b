// Package telemetry groups operational observability for the OKR engine.
//
// Tracing is configured by internal/platform/otel. Counters and latency
// histograms live in telemetry/metrics and are registered on a caller-owned
// Prometheus registry so tests and embedders can isolate them.
package telemetry
