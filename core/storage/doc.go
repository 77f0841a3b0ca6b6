// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so the S3 cache backend
// (core/persist) can be tested with the mock in core/storage/mocks. Both AWS S3 and
// self-hosted MinIO instances are supported.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
