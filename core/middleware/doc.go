// Package middleware groups the fiber middleware shared by all features.
//
//   - rayid: assigns every request a RayID (X-Ray-ID) used by logger.WithRayID.
//   - auth: rejects requests without the configured API key (X-API-Key header or
//     api_key query parameter).
//
// The serve command installs rayid first, then request logging, then auth.
package middleware
