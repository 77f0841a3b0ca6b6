// Package integrity checks the health of everything a sync depends on.
//
// # Checks Provided
//
//   - Cache: every cached table, text map and asset is checked against its format
//     markers; ledger entries without a file are reported as missing. With fix the
//     corrupted files are removed and the next sync fetches them again.
//   - Templates: every obfuscated table in the manifest has a template that parses and
//     compiles.
//   - Structure: with the s3 backend, the cache and template prefixes exist in the
//     bucket (supports fix).
//   - Schema: with a database, the sync_runs table matches the history model.
//
// Checks whose backend is not configured report "skipped".
//
// # HTTP Endpoints
//
//   - GET /integrity : runs all checks (?fix=true repairs the cache).
//   - GET /integrity/cache : cache check (?fix=true).
//   - GET /integrity/templates : template check.
//   - GET /integrity/structure : bucket layout check (?fix=true).
//   - GET /integrity/schema : history schema check.
package integrity
