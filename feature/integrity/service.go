package integrity

import (
	"context"
	"errors"

	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/storage"
	"gamedata-sync/core/synchronizer"
	"gamedata-sync/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotApplicable is returned by checks whose backend is not configured.
var ErrNotApplicable = errors.New("check does not apply to this deployment")

// CacheVerifier verifies and repairs the local cache.
type CacheVerifier interface {
	VerifyCache(ctx context.Context, fix bool) (*synchronizer.Report, error)
}

// Bucket is the object storage the cache lives in, when the s3 backend is used.
type Bucket struct {
	Client   storage.Client
	Name     string
	Prefixes []string
}

// Service runs integrity checks.
type Service struct {
	cache     CacheVerifier
	templates persist.Store
	manifest  *manifest.Manifest
	bucket    *Bucket
	db        *gorm.DB
	logger    *zap.Logger
}

// NewService creates a new integrity service. bucket and db may be nil.
func NewService(cache CacheVerifier, templates persist.Store, m *manifest.Manifest, bucket *Bucket, db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{
		cache:     cache,
		templates: templates,
		manifest:  m,
		bucket:    bucket,
		db:        db,
		logger:    logger,
	}
}

// CheckCache verifies every cached file and, with fix, removes the corrupted ones.
func (s *Service) CheckCache(ctx context.Context, fix bool) (*synchronizer.Report, error) {
	return s.cache.VerifyCache(ctx, fix)
}

// CheckTemplates verifies that every obfuscated table has a usable template.
func (s *Service) CheckTemplates(ctx context.Context) (*checks.TemplateReport, error) {
	return checks.CheckTemplates(ctx, s.templates, s.manifest)
}

// CheckStructure returns the bucket prefixes holding no object.
func (s *Service) CheckStructure(ctx context.Context) ([]string, error) {
	if s.bucket == nil {
		return nil, ErrNotApplicable
	}
	return checks.CheckStructure(ctx, s.bucket.Client, s.bucket.Name, s.bucket.Prefixes)
}

// FixStructure creates the missing prefixes.
func (s *Service) FixStructure(ctx context.Context, missing []string) error {
	if s.bucket == nil {
		return ErrNotApplicable
	}
	return checks.FixStructure(ctx, s.bucket.Client, s.bucket.Name, s.logger, missing)
}

// CheckSchema compares the history table with its model.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	if s.db == nil {
		return nil, ErrNotApplicable
	}
	return checks.CheckSchema(s.db)
}
