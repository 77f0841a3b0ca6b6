// Package config loads the service configuration.
//
// Values come from the environment, optionally seeded from a .env file, and fall back
// to the `default` struct tags of each section. Keys are nested by section and the
// matching environment variable joins them with an underscore:
//
//	sync.max_passes      -> SYNC_MAX_PASSES
//	upstream.file_url    -> UPSTREAM_FILE_URL
//	cache.backend        -> CACHE_BACKEND
//
// # Sections
//
//   - Server: HTTP port and API key
//   - Log: level and encoding
//   - Storage: S3/MinIO credentials and bucket, used when cache.backend is s3
//   - Database: MySQL connection for the sync history (optional)
//   - Upstream: revision and raw file endpoints
//   - Cache: store backend and roots
//   - Sync: manifest path, languages, concurrency, schedule and decoder options
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.Languages)
package config
