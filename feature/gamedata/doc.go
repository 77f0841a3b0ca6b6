// Package gamedata serves the published snapshot over HTTP.
//
// Reads go through snapshot.Cache, so a request sees one generation of tables and
// texts even while a sync publishes the next one. Assets are read through the
// synchronizer, which verifies the cached copy and fetches it again when it is
// corrupted.
//
// # HTTP Endpoints
//
//   - GET /gamedata/tables : snapshot summary.
//   - GET /gamedata/tables/:name : one decoded table.
//   - GET /gamedata/text/:hash : text for a hash (?lang=).
//   - GET /gamedata/assets/* : a verified asset.
package gamedata
