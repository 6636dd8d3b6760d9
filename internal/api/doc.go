// Package api hosts the status HTTP server. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/listings/latest and /v1/promotions/active for read-only views
//     of the known-sets.
//   - POST /v1/checks to run a check on demand.
package api
