package gamedata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gamedata-sync/core/snapshot"

	"go.uber.org/zap"
)

// ErrNoSnapshot is returned before the first sync has published anything.
var ErrNoSnapshot = errors.New("no snapshot has been published yet")

// AssetSource reads verified assets.
type AssetSource interface {
	Asset(ctx context.Context, name string) ([]byte, error)
}

// TableInfo describes one published table.
type TableInfo struct {
	Name string `json:"name"`
	// Confidence is set for tables recovered from obfuscated keys.
	Confidence *float64 `json:"confidence,omitempty"`
}

// Summary describes the published snapshot.
type Summary struct {
	Revision  string          `json:"revision"`
	Timestamp string          `json:"timestamp,omitempty"`
	BuiltAt   time.Time       `json:"built_at"`
	Tables    []TableInfo     `json:"tables"`
	Languages []string        `json:"languages"`
	Assets    map[string]bool `json:"assets"`
}

// Service answers lookups against the published snapshot.
type Service struct {
	snapshots   *snapshot.Cache
	assets      AssetSource
	defaultLang string
	logger      *zap.Logger
}

// NewService creates a new gamedata service. defaultLang is used when a text lookup
// names no language.
func NewService(snapshots *snapshot.Cache, assets AssetSource, defaultLang string, logger *zap.Logger) *Service {
	return &Service{
		snapshots:   snapshots,
		assets:      assets,
		defaultLang: defaultLang,
		logger:      logger,
	}
}

// Summary describes the current snapshot.
func (s *Service) Summary() (*Summary, error) {
	cur := s.snapshots.Current()
	if cur == nil {
		return nil, ErrNoSnapshot
	}

	sum := &Summary{
		Revision:  cur.Revision,
		Timestamp: cur.Timestamp,
		BuiltAt:   cur.BuiltAt,
		Languages: cur.Languages(),
		Assets:    cur.Assets,
	}
	for _, name := range cur.TableNames() {
		info := TableInfo{Name: name}
		if c, ok := cur.Confidence[name]; ok {
			info.Confidence = &c
		}
		sum.Tables = append(sum.Tables, info)
	}
	return sum, nil
}

// Table returns a decoded table.
func (s *Service) Table(name string) (any, bool) {
	return s.snapshots.Table(name)
}

// Text resolves a text hash in lang, or in the default language when lang is empty.
func (s *Service) Text(lang string, hash uint64) (string, string, bool) {
	if lang == "" {
		lang = s.defaultLang
	}
	text, ok := s.snapshots.Text(lang, hash)
	return text, lang, ok
}

// Asset returns a verified asset.
func (s *Service) Asset(ctx context.Context, name string) ([]byte, error) {
	return s.assets.Asset(ctx, name)
}

// ParseHash parses a text-map hash. Negative values are the signed form of the same
// 64-bit hash.
func ParseHash(raw string) (uint64, error) {
	if h, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return h, nil
	}
	signed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint64(signed), nil
}
