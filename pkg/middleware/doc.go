// Package middleware provides the observability layer of a markout server.
//
// # Prometheus Metrics
//
// Prometheus builds a Metrics value. It implements reactive.Observer, so a
// runtime reports refreshes, propagations, callback flushes and evaluation
// failures to it, and it wraps HTTP handlers to count requests by route:
//
//	reg := prometheus.NewRegistry()
//	m := middleware.Prometheus(middleware.WithRegistry(reg))
//	r := chi.NewRouter()
//	r.Use(m.HTTP)
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Metrics collected (namespace "markout" by default):
//   - markout_refresh_duration_seconds
//   - markout_propagations_total and markout_propagated_values_total
//   - markout_callbacks_flushed_total
//   - markout_eval_errors_total, by error type
//   - markout_http_requests_total and markout_http_request_duration_seconds
//   - markout_live_sessions, markout_patches_sent_total
//   - markout_websocket_errors_total
//
// # OpenTelemetry
//
// OpenTelemetry traces every HTTP request as a server span. StartSpan opens
// child spans for page rendering and live updates:
//
//	r.Use(middleware.OpenTelemetry(middleware.WithTracerName("pages")))
//
// The global tracer provider is used unless WithTracerProvider is given.
package middleware
