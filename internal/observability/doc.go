// Package observability provides structured logging, metrics, and tracing
// for the Teftar API.
//
// This package implements:
//   - zap loggers configured from LOG_LEVEL and LOG_FORMAT
//   - per-request access logging keyed by the chi request ID
//   - Prometheus collectors for gate outcomes, upstream calls, and HTTP traffic
//   - OpenTelemetry tracer setup with OTLP gRPC or HTTP export
package observability
