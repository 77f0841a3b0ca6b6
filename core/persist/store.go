package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"gamedata-sync/core/retry"
	"gamedata-sync/core/storage"
)

// Store is an atomic key/value file store.
type Store interface {
	// Read opens the content of key. A missing key wraps fs.ErrNotExist.
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	// Write atomically replaces the content of key.
	Write(ctx context.Context, key string, r io.Reader) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// List returns the sorted keys below prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open builds the Store for root using the configured backend. The client and bucket
// are only used by the s3 backend.
func Open(backend, root string, client storage.Client, bucket string) (Store, error) {
	switch backend {
	case BackendDisk, "":
		return NewDiskStore(root)
	case BackendS3:
		if client == nil {
			return nil, retry.New(retry.CategoryConfig, "open store", fmt.Errorf("backend %q needs a storage client", backend))
		}
		return NewObjectStore(client, bucket, root), nil
	default:
		return nil, retry.New(retry.CategoryConfig, "open store", fmt.Errorf("unknown backend %q", backend))
	}
}

// ReadJSON decodes the JSON document stored at key into v.
func ReadJSON(ctx context.Context, s Store, key string, v any) error {
	rc, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return retry.New(retry.CategoryStructure, "decode "+key, err)
	}
	return nil
}

// WriteJSON atomically stores v as indented JSON at key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Write(ctx, key, &buf)
}

// ReadAll reads the whole content of key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// cleanKey normalises a key and rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	k := strings.ReplaceAll(key, "\\", "/")
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			return "", retry.New(retry.CategoryValidation, "clean key", fmt.Errorf("key %q escapes the store", key))
		}
	}
	k = strings.TrimPrefix(path.Clean("/"+k), "/")
	if k == "" {
		return "", retry.New(retry.CategoryValidation, "clean key", fmt.Errorf("empty key %q", key))
	}
	return k, nil
}
