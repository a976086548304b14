// Package observability groups the cross-cutting instrumentation for the
// fusion pipeline: structured logging (logging), Prometheus metrics (metrics),
// and OpenTelemetry tracing (tracing). Application packages import the
// subpackages directly; this package exists for documentation only.
package observability
