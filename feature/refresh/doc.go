// Package refresh exposes the synchronizer over HTTP.
//
// A POST starts a refresh in the background and returns immediately; with wait=true
// the request blocks until the run finishes. Concurrent requests share one run.
// Background runs are cancelled when the service is closed at shutdown.
//
// # HTTP Endpoints
//
//   - POST /sync : start a sync (?wait=true to block).
//   - GET /sync/status : revision, progress, last error and decode confidence.
//   - GET /sync/check : query the upstream revision only.
package refresh
