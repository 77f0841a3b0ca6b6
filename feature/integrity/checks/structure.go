package checks

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gamedata-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// CheckStructure returns the prefixes that hold no object in the bucket.
func CheckStructure(ctx context.Context, client storage.Client, bucket string, prefixes []string) ([]string, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	missing := []string{}
	for _, prefix := range prefixes {
		opts := minio.ListObjectsOptions{
			Prefix:    folder(prefix),
			Recursive: false,
			MaxKeys:   1,
		}

		found := false
		for obj := range client.ListObjects(ctx, bucket, opts) {
			found = obj.Err == nil
			break
		}
		if !found {
			missing = append(missing, prefix)
		}
	}
	return missing, nil
}

// FixStructure creates an empty folder marker for every missing prefix.
func FixStructure(ctx context.Context, client storage.Client, bucket string, logger *zap.Logger, missing []string) error {
	for _, prefix := range missing {
		_, err := client.PutObject(ctx, bucket, folder(prefix), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
		if err != nil {
			logger.Error("Failed to create folder", zap.String("prefix", prefix), zap.Error(err))
			return err
		}
		logger.Info("Created missing folder", zap.String("prefix", prefix))
	}
	return nil
}

func folder(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	return prefix + "/"
}
