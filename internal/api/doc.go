// Package api implements the HTTP status and command API for the KairosDB persistor.
//
// This package provides:
//   - GET /api/v1/health: MQTT, KairosDB and optional journal/mirror probes (200 or 503)
//   - GET /api/v1/metrics: runtime, bus and dispatch counters as JSON
//   - GET /api/v1/journal: paginated command journal listing
//   - POST /api/v1/commands: HTTP inbound for bus command envelopes
//   - GET /metrics: Prometheus exposition
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The API sits beside the bus service. Commands posted over HTTP go through the
// same dispatcher, so they are validated, journaled and counted exactly as bus
// commands are. The reply body is the bus reply body; the HTTP status adds a
// coarse classification (400 for client mistakes, 502 for KairosDB errors,
// 503 when KairosDB cannot be reached).
//
// # Graceful Degradation
//
// The journal endpoint answers 503 when the journal is disabled. Optional
// health components (journal, mirror) degrade the report without failing it.
package api
