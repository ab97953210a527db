// Package otel exposes engine metrics through OpenTelemetry observable
// instruments. Histograms are flattened into per-bucket gauges because the
// engine stores pre-aggregated fixed buckets.
package otel
