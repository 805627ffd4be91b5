// Package observability provides structured logging and tracing for the
// fact history service.
//
// This package implements:
//   - zap logger construction from configuration (JSON or console)
//   - Request-scoped loggers carrying the chi request ID
//   - OpenTelemetry tracing with an OTLP/HTTP exporter
package observability
