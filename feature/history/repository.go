package history

import (
	"context"
	"fmt"

	"gamedata-sync/core/synchronizer"
	"gamedata-sync/feature/history/models"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Repository stores sync runs. It implements synchronizer.Recorder.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository on db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the sync_runs table.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&models.SyncRun{}); err != nil {
		return fmt.Errorf("failed to migrate sync history: %w", err)
	}
	return nil
}

// Record inserts one run.
func (r *Repository) Record(ctx context.Context, run synchronizer.Run) error {
	row := models.SyncRun{
		ID:         run.ID,
		Trigger:    run.Trigger,
		Revision:   run.Revision,
		Status:     run.Status,
		Tables:     run.Tables,
		Languages:  run.Languages,
		Fetched:    run.Fetched,
		Confidence: run.Confidence,
		Error:      run.Error,
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record sync run %s: %w", run.ID, err)
	}
	return nil
}

// List returns the latest runs, newest first, optionally restricted to one status.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var runs []models.SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// Get returns a run by ID.
func (r *Repository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
