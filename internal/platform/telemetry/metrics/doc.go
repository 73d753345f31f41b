// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Operations: count of service operations by name and outcome
//   - Latency: operation duration histograms by name
//   - Alignment: rejected alignment proposals by reason
//
// Collectors are registered on an explicit prometheus.Registerer. A nil
// *Recorder is a valid no-op recorder. Embedders pass one to
// app.WithMetrics; okrctl runs without one.
package metrics
