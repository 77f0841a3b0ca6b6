// Package history records every sync run in the SQL database and serves the log.
//
// Repository implements synchronizer.Recorder; the serve command hands it to the
// synchronizer when a database connection is available. Without one the feature is
// disabled and runs are only logged.
//
// # HTTP Endpoints
//
//   - GET /history : latest runs (?limit=, ?status=).
//   - GET /history/:id : one run.
package history
