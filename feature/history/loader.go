package history

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	repo    *Repository
	handler *Handler
}

// NewFeature creates the history feature. A nil db disables it.
func NewFeature(db *gorm.DB, logger *zap.Logger) *Feature {
	if db == nil {
		return &Feature{}
	}
	repo := NewRepository(db)
	return &Feature{repo: repo, handler: NewHandler(repo, logger)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "history"
}

// IsEnabled reports whether a database is available.
func (f *Feature) IsEnabled() bool {
	return f.repo != nil
}

// Repository returns the run recorder, or nil when disabled.
func (f *Feature) Repository() *Repository {
	return f.repo
}

// Load migrates the history table and registers the routes.
func (f *Feature) Load(app fiber.Router) error {
	if err := f.repo.Migrate(); err != nil {
		return err
	}
	f.handler.RegisterRoutes(app)
	return nil
}
