package upstream_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamedata-sync/core/retry"
	"gamedata-sync/core/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return upstream.New(upstream.Config{
		RevisionURL: srv.URL + "/commits",
		FileURL:     srv.URL + "/raw/{revision}/{path}",
		Token:       "secret",
		UserAgent:   "gamedata-sync-test",
	}, zap.NewNop())
}

func TestLatestRevision(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     upstream.Fingerprint
		category retry.Category
	}{
		{"GitLab", 200, `[{"id":"abc123","committed_date":"2024-05-01T10:00:00Z"},{"id":"old"}]`, upstream.Fingerprint{ID: "abc123", Timestamp: "2024-05-01T10:00:00Z"}, ""},
		{"CreatedAtFallback", 200, `[{"id":"abc","created_at":"2024-05-01"}]`, upstream.Fingerprint{ID: "abc", Timestamp: "2024-05-01"}, ""},
		{"SHAFallback", 200, `[{"sha":"def"}]`, upstream.Fingerprint{ID: "def"}, ""},
		{"Empty", 200, `[]`, upstream.Fingerprint{}, retry.CategoryStructure},
		{"NumericID", 200, `[{"id":42}]`, upstream.Fingerprint{ID: "42"}, ""},
		{"NotAList", 200, `{"id":"abc"}`, upstream.Fingerprint{}, retry.CategoryStructure},
		{"Truncated", 200, `[{"id":"abc"`, upstream.Fingerprint{}, retry.CategoryStructure},
		{"NoIdentifier", 200, `[{"title":"x"}]`, upstream.Fingerprint{}, retry.CategoryStructure},
		{"RateLimited", 429, `slow down`, upstream.Fingerprint{}, retry.CategoryRateLimit},
		{"ServerError", 502, ``, upstream.Fingerprint{}, retry.CategoryServer},
		{"NotFound", 404, ``, upstream.Fingerprint{}, retry.CategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/commits", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				assert.Equal(t, "gamedata-sync-test", r.Header.Get("User-Agent"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.LatestRevision(context.Background())
			if tt.category != "" {
				require.Error(t, err)
				assert.True(t, retry.IsCategory(err, tt.category), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/raw/abc123/ExcelBinOutput/WeaponExcelConfigData.json":
			_, _ = w.Write([]byte(`[{"a":1}]`))
		default:
			http.NotFound(w, r)
		}
	})

	rc, err := c.Fetch(context.Background(), "abc123", "ExcelBinOutput/WeaponExcelConfigData.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `[{"a":1}]`, string(body))

	_, err = c.Fetch(context.Background(), "abc123", "missing.json")
	assert.True(t, retry.IsCategory(err, retry.CategoryNotFound))
	assert.False(t, retry.IsRetryable(err))
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := upstream.New(upstream.Config{FileURL: url + "/{path}"}, zap.NewNop())
	_, err := c.Fetch(context.Background(), "abc", "x.json")
	require.Error(t, err)
	assert.True(t, retry.IsRetryable(err))
}

func TestFetch_Timeouts(t *testing.T) {
	serve := func(t *testing.T, h http.HandlerFunc) *upstream.Client {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		return upstream.New(upstream.Config{FileURL: srv.URL + "/{path}", TimeoutSeconds: 1}, zap.NewNop())
	}

	t.Run("SlowBodyCompletes", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			for i := 0; i < 4; i++ {
				_, _ = w.Write([]byte("chunk"))
				w.(http.Flusher).Flush()
				time.Sleep(400 * time.Millisecond)
			}
		})

		rc, err := c.Fetch(context.Background(), "abc", "big.json")
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("chunk", 4), string(body))
	})

	t.Run("LateHeadersTimeOut", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(1500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})

		_, err := c.Fetch(context.Background(), "abc", "slow.json")
		require.Error(t, err)
		assert.True(t, retry.IsCategory(err, retry.CategoryTimeout), "got %v", err)
	})
}

func TestFileURL(t *testing.T) {
	c := upstream.New(upstream.Config{FileURL: "https://example.com/raw/{revision}/{path}"}, zap.NewNop())
	assert.Equal(t, "https://example.com/raw/abc/TextMap/TextMap%20EN.json", c.FileURL("abc", "/TextMap/TextMap EN.json"))
}

func TestFingerprint(t *testing.T) {
	a := upstream.Fingerprint{ID: "x", Timestamp: "1"}
	assert.True(t, a.Equal(upstream.Fingerprint{ID: "x", Timestamp: "2"}))
	assert.False(t, a.Equal(upstream.Fingerprint{ID: "y"}))
	assert.True(t, upstream.Fingerprint{}.IsZero())
}
