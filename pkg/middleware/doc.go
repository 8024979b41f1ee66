// Package middleware provides HTTP middleware for the place server.
//
// # Prometheus Metrics
//
// Prometheus records every request against the chi route pattern it matched,
// so a scrape never sees one series per raw URL:
//
//	reg := prometheus.NewRegistry()
//	r := chi.NewRouter()
//	r.Use(middleware.Prometheus(
//	    middleware.WithRegistry(reg),
//	    middleware.WithNamespace("place"),
//	))
//
// WebSocket upgrades are counted separately by result and kept out of the
// latency histogram, since an accepted upgrade lasts as long as the
// connection.
package middleware
