package checks

import (
	"context"
	"testing"

	"gamedata-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var prefixes = []string{"data/cache", "data/templates"}

func TestCheckStructure(t *testing.T) {
	ctx := context.Background()

	t.Run("BucketMissing", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "gamedata").Return(false, nil)

		_, err := CheckStructure(ctx, client, "gamedata", prefixes)
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("AllMissing", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "gamedata").Return(true, nil)
		ch := make(chan minio.ObjectInfo)
		close(ch)
		client.On("ListObjects", mock.Anything, "gamedata", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

		missing, err := CheckStructure(ctx, client, "gamedata", prefixes)
		assert.NoError(t, err)
		assert.Equal(t, prefixes, missing)
	})

	t.Run("AllPresent", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "gamedata").Return(true, nil)
		for _, prefix := range prefixes {
			ch := make(chan minio.ObjectInfo, 1)
			ch <- minio.ObjectInfo{Key: prefix + "/state.json"}
			close(ch)
			client.On("ListObjects", mock.Anything, "gamedata", mock.MatchedBy(func(opts minio.ListObjectsOptions) bool {
				return opts.Prefix == prefix+"/"
			})).Return((<-chan minio.ObjectInfo)(ch))
		}

		missing, err := CheckStructure(ctx, client, "gamedata", prefixes)
		assert.NoError(t, err)
		assert.Empty(t, missing)
	})
}

func TestFixStructure(t *testing.T) {
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "gamedata", "data/templates/", mock.Anything, int64(0), mock.Anything).
		Return(minio.UploadInfo{}, nil)

	err := FixStructure(context.Background(), client, "gamedata", zap.NewNop(), []string{"/data/templates/"})
	assert.NoError(t, err)
	client.AssertNumberOfCalls(t, "PutObject", 1)
}
