// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("rack_id", rackID).Info("rack created")
//
// The request middleware stores a logger on the context; FromContext returns it
// enriched with the request id, the session user id and the active trace ids.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.AuthorizationDecisions.WithLabelValues("DeleteRack", "denied").Inc()
//
// HTTP metrics are labelled with the gorilla/mux route template, not the raw path.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// The database is required; Redis is optional and only degrades readiness.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request id and logging middleware
package observability
