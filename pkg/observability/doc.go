// Package observability provides structured logging, Prometheus metrics, health probes,
// OpenTelemetry setup and graceful shutdown for warden.
//
// Logging uses logrus with a JSON formatter. Request-scoped loggers carry the request id
// and user id:
//
//	log := observability.FromContext(ctx, base)
//	log.WithField("incident_id", id).Info("incident updated")
//
// Metrics are registered on a caller-owned registry. Every recording helper is nil-safe
// so components can be built without metrics in tests:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordCacheOp("get", "hit")
package observability
