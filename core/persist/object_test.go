package persist_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"gamedata-sync/core/persist"
	"gamedata-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestObjectStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Read", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "/cache/")
		m.On("StatObject", ctx, "gamedata", "cache/tables/Avatar.json", minio.StatObjectOptions{}).Return(minio.ObjectInfo{Size: 2}, nil)
		m.On("GetObject", ctx, "gamedata", "cache/tables/Avatar.json", minio.GetObjectOptions{}).
			Return(io.NopCloser(strings.NewReader("[]")), nil)

		data, err := persist.ReadAll(ctx, s, "tables/Avatar.json")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
		m.AssertExpectations(t)
	})

	t.Run("ReadMissing", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "cache")
		m.On("StatObject", ctx, "gamedata", "cache/state.json", minio.StatObjectOptions{}).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

		_, err := s.Read(ctx, "state.json")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
		m.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ReadFailure", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "cache")
		m.On("StatObject", ctx, "gamedata", "cache/state.json", minio.StatObjectOptions{}).
			Return(nil, minio.ErrorResponse{Code: "AccessDenied"})

		_, err := s.Read(ctx, "state.json")
		require.Error(t, err)
		assert.False(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("Write", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "")
		m.On("PutObject", ctx, "gamedata", "assets/icon.png", mock.Anything, int64(-1),
			minio.PutObjectOptions{ContentType: "image/png"}).Return(minio.UploadInfo{}, nil)

		require.NoError(t, s.Write(ctx, "assets/icon.png", strings.NewReader("png")))
		m.AssertExpectations(t)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "cache")
		m.On("RemoveObject", ctx, "gamedata", "cache/x.json", minio.RemoveObjectOptions{}).
			Return(minio.ErrorResponse{Code: "NoSuchKey"})

		assert.NoError(t, s.Remove(ctx, "x.json"))
	})

	t.Run("List", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "cache")

		ch := make(chan minio.ObjectInfo, 3)
		ch <- minio.ObjectInfo{Key: "cache/tables/"}
		ch <- minio.ObjectInfo{Key: "cache/tables/Weapon.json"}
		ch <- minio.ObjectInfo{Key: "cache/tables/Avatar.json"}
		close(ch)
		m.On("ListObjects", ctx, "gamedata", minio.ListObjectsOptions{Prefix: "cache/tables/", Recursive: true}).
			Return((<-chan minio.ObjectInfo)(ch))

		keys, err := s.List(ctx, "tables/")
		require.NoError(t, err)
		assert.Equal(t, []string{"tables/Avatar.json", "tables/Weapon.json"}, keys)
	})

	t.Run("ListError", func(t *testing.T) {
		m := new(mocks.Client)
		s := persist.NewObjectStore(m, "gamedata", "cache")

		ch := make(chan minio.ObjectInfo, 1)
		ch <- minio.ObjectInfo{Err: errors.New("timeout")}
		close(ch)
		m.On("ListObjects", ctx, "gamedata", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

		_, err := s.List(ctx, "")
		assert.ErrorContains(t, err, "timeout")
	})
}
