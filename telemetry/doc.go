// Package telemetry provides OpenTelemetry tracing for task execution.
//
// InitProvider wires an OTLP exporter (grpc or http) into a global
// tracer provider; WrapTask decorates a task so each execution runs
// inside a span carrying the runner key, task name and id. Without a
// provider the helpers fall back to no-op spans, so callers never need
// to branch on whether tracing is enabled.
package telemetry
