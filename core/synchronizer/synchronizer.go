package synchronizer

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/retry"
	"gamedata-sync/core/schema"
	"gamedata-sync/core/snapshot"
	"gamedata-sync/core/upstream"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Upstream is the remote repository.
type Upstream interface {
	LatestRevision(ctx context.Context) (upstream.Fingerprint, error)
	Fetch(ctx context.Context, revision, path string) (io.ReadCloser, error)
}

// Triggers name what started a run.
const (
	TriggerManual    = "manual"
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerAPI       = "api"
)

// Run outcomes.
const (
	RunPublished = "published"
	RunUpToDate  = "up_to_date"
	RunFailed    = "failed"
)

// Run describes one sync attempt.
type Run struct {
	ID         string
	Trigger    string
	Revision   string
	Status     string
	Tables     int
	Languages  int
	Fetched    int
	Confidence map[string]float64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists sync runs.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}

// Request selects what a sync covers.
type Request struct {
	Tables    []manifest.Table
	Assets    []manifest.Asset
	Languages []string
	Trigger   string
}

func (r Request) tableNames() []string {
	names := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		names[i] = t.Name
	}
	return names
}

func (r Request) assetNames() []string {
	names := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		names[i] = a.Name
	}
	return names
}

// key identifies requests covering the same files.
func (r Request) key() string {
	parts := func(in []string) string {
		out := append([]string(nil), in...)
		sort.Strings(out)
		return strings.Join(out, ",")
	}
	return parts(r.tableNames()) + "|" + parts(r.assetNames()) + "|" + parts(r.Languages)
}

// Status is a point-in-time view of the synchronizer.
type Status struct {
	Revision    string             `json:"revision"`
	Upstream    string             `json:"upstream"`
	InProgress  bool               `json:"in_progress"`
	LastSync    *time.Time         `json:"last_sync,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Tables      []string           `json:"tables"`
	Languages   []string           `json:"languages"`
	Confidence  map[string]float64 `json:"confidence,omitempty"`
	AssetErrors []string           `json:"asset_errors,omitempty"`
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithRecorder records every run.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		s.recorder = r
	}
}

// WithRetrier replaces the retry executor.
func WithRetrier(r *retry.Retrier) Option {
	return func(s *Synchronizer) {
		s.retrier = r
	}
}

// WithDecoder shares a decoder and its memo.
func WithDecoder(d *schema.Decoder) Option {
	return func(s *Synchronizer) {
		s.decoder = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// Synchronizer keeps the cache and the published snapshot in step with upstream.
type Synchronizer struct {
	cfg       Config
	manifest  *manifest.Manifest
	upstream  Upstream
	cache     persist.Store
	templates *schema.Registry
	decoder   *schema.Decoder
	snapshots *snapshot.Cache
	retrier   *retry.Retrier
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time

	sf         singleflight.Group
	runMu      sync.Mutex
	running    atomic.Bool
	superseded atomic.Bool

	mu     sync.Mutex
	st     state
	loaded bool
	status Status
}

// New creates a Synchronizer.
func New(cfg Config, m *manifest.Manifest, up Upstream, cache persist.Store, templates *schema.Registry, snapshots *snapshot.Cache, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cfg:       cfg,
		manifest:  m,
		upstream:  up,
		cache:     cache,
		templates: templates,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retrier == nil {
		s.retrier = retry.NewRetrier(retry.WithLogger(logger))
	}
	if s.decoder == nil {
		s.decoder = schema.NewDecoder(logger)
	}
	return s
}

// CheckForUpdate queries the latest revision and reports whether it differs from the
// persisted fingerprint. The new fingerprint is persisted either way.
func (s *Synchronizer) CheckForUpdate(ctx context.Context) (bool, error) {
	fp, err := s.latest(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return false, err
	}

	previous := s.st.Fingerprint
	changed := !previous.Equal(fp)
	s.st.Fingerprint = fp
	if err := s.saveLocked(ctx); err != nil {
		return changed, err
	}

	if changed {
		s.logger.Info("Upstream revision changed",
			zap.String("previous", previous.ID),
			zap.String("current", fp.ID),
			zap.String("timestamp", fp.Timestamp),
		)
		if s.running.Load() {
			s.superseded.Store(true)
		}
	}
	return changed, nil
}

// RequiredTables resolves the tables read by the named consumers, or by every
// consumer when none are named.
func (s *Synchronizer) RequiredTables(consumers []string) ([]manifest.Table, error) {
	return s.manifest.RequiredTables(consumers)
}

// Sync brings the snapshot to the current fingerprint for the given tables and
// languages.
func (s *Synchronizer) Sync(ctx context.Context, tables []manifest.Table, languages []string) error {
	return s.Execute(ctx, Request{Tables: tables, Languages: languages, Trigger: TriggerManual})
}

// Refresh checks for an update and syncs everything the configured consumers need.
func (s *Synchronizer) Refresh(ctx context.Context, trigger string) error {
	if _, err := s.CheckForUpdate(ctx); err != nil {
		if s.knownFingerprint(ctx).IsZero() {
			return err
		}
		s.logger.Warn("Revision query failed; syncing against the last known revision", zap.Error(err))
	}

	tables, err := s.manifest.RequiredTables(s.cfg.Consumers)
	if err != nil {
		return err
	}
	assets, err := s.manifest.RequiredAssets(s.cfg.Consumers)
	if err != nil {
		return err
	}
	return s.Execute(ctx, Request{
		Tables:    tables,
		Assets:    assets,
		Languages: s.cfg.Languages,
		Trigger:   trigger,
	})
}

// Execute runs a sync for req. Callers with the same request share one run; runs for
// different requests are serialized.
func (s *Synchronizer) Execute(ctx context.Context, req Request) error {
	_, err, shared := s.sf.Do(req.key(), func() (interface{}, error) {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return nil, s.passes(ctx, req)
	})
	if shared {
		s.logger.Debug("Joined in-flight sync", zap.String("trigger", req.Trigger))
	}
	return err
}

func (s *Synchronizer) passes(ctx context.Context, req Request) error {
	s.running.Store(true)
	s.superseded.Store(false)
	s.setInProgress(true)
	defer func() {
		s.running.Store(false)
		s.setInProgress(false)
	}()

	for pass := 1; ; pass++ {
		if err := s.runOnce(ctx, req); err != nil {
			return err
		}
		if !s.superseded.Swap(false) {
			return nil
		}
		if pass >= s.cfg.maxPasses() {
			s.logger.Warn("Upstream kept moving during sync; leaving the next revision to the next run",
				zap.Int("passes", pass))
			return nil
		}
		s.logger.Info("Upstream moved during sync; syncing again", zap.Int("pass", pass+1))
	}
}

func (s *Synchronizer) runOnce(ctx context.Context, req Request) error {
	run := Run{
		ID:        uuid.NewString(),
		Trigger:   req.Trigger,
		Tables:    len(req.Tables),
		Languages: len(req.Languages),
		StartedAt: s.now(),
	}

	err := s.runPass(ctx, req, &run)
	run.FinishedAt = s.now()

	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		s.logger.Error("Sync failed, keeping the previous snapshot",
			zap.String("run_id", run.ID),
			zap.String("revision", run.Revision),
			zap.String("category", string(retry.Classify(err))),
			zap.Error(err),
		)
		s.mu.Lock()
		s.status.LastError = err.Error()
		s.mu.Unlock()
	}

	s.record(ctx, run)
	return err
}

func (s *Synchronizer) runPass(ctx context.Context, req Request, run *Run) error {
	fp, err := s.fingerprint(ctx)
	if err != nil {
		return err
	}
	run.Revision = fp.ID

	if s.upToDate(fp, req) {
		run.Status = RunUpToDate
		s.logger.Debug("Snapshot is up to date", zap.String("revision", fp.ID))
		return nil
	}

	s.logger.Info("Starting sync",
		zap.String("run_id", run.ID),
		zap.String("revision", fp.ID),
		zap.Int("tables", len(req.Tables)),
		zap.Int("assets", len(req.Assets)),
		zap.Strings("languages", req.Languages),
	)

	var fetched atomic.Int32
	snap, assetErrs, err := s.build(ctx, fp, req, &fetched)
	run.Fetched = int(fetched.Load())

	// the ledger is kept even when the build fails so a retry skips finished files
	if serr := s.saveState(ctx); serr != nil {
		s.logger.Warn("Failed to persist sync state", zap.Error(serr))
	}
	if err != nil {
		return err
	}

	if err := s.publish(ctx, fp, snap, assetErrs); err != nil {
		return err
	}
	run.Status = RunPublished
	run.Confidence = snap.Confidence

	s.logger.Info("Published snapshot",
		zap.String("run_id", run.ID),
		zap.String("revision", fp.ID),
		zap.Int("tables", len(snap.Tables)),
		zap.Int("fetched", run.Fetched),
		zap.Int("asset_errors", len(assetErrs)),
		zap.Duration("elapsed", s.now().Sub(run.StartedAt)),
	)
	return nil
}

func (s *Synchronizer) upToDate(fp upstream.Fingerprint, req Request) bool {
	s.mu.Lock()
	published := s.st.Published
	s.mu.Unlock()
	if published != fp.ID {
		return false
	}

	cur := s.snapshots.Current()
	return cur != nil &&
		cur.Revision == fp.ID &&
		cur.Covers(req.tableNames(), req.Languages) &&
		cur.HasAssets(req.assetNames())
}

func (s *Synchronizer) publish(ctx context.Context, fp upstream.Fingerprint, snap *snapshot.Snapshot, assetErrs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Published != fp.ID {
		// memoised alignments are keyed by record shape, not revision; drop them
		// so the memo only ever spans one revision
		s.decoder.Reset()
	}
	s.st.Published = fp.ID
	s.st.prune(fp.ID)
	if err := s.saveLocked(ctx); err != nil {
		return err
	}

	s.snapshots.Publish(snap)

	now := s.now()
	s.status.LastSync = &now
	s.status.LastError = ""
	s.status.AssetErrors = assetErrs
	return nil
}

// Status reports the current revision, progress and decode confidence.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	st := s.status
	st.Upstream = s.st.Fingerprint.ID
	s.mu.Unlock()

	st.Tables = []string{}
	st.Languages = []string{}
	if cur := s.snapshots.Current(); cur != nil {
		st.Revision = cur.Revision
		st.Tables = cur.TableNames()
		st.Languages = cur.Languages()
		st.Confidence = cur.Confidence
	}
	return st
}

func (s *Synchronizer) setInProgress(v bool) {
	s.mu.Lock()
	s.status.InProgress = v
	s.mu.Unlock()
}

func (s *Synchronizer) record(ctx context.Context, run Run) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Synchronizer) latest(ctx context.Context) (upstream.Fingerprint, error) {
	return retry.Do(ctx, s.retrier, "query revision", func() (upstream.Fingerprint, error) {
		return s.upstream.LatestRevision(ctx)
	})
}

// fingerprint returns the persisted fingerprint, querying upstream when none is known.
func (s *Synchronizer) fingerprint(ctx context.Context) (upstream.Fingerprint, error) {
	if fp := s.knownFingerprint(ctx); !fp.IsZero() {
		return fp, nil
	}

	fp, err := s.latest(ctx)
	if err != nil {
		return upstream.Fingerprint{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Fingerprint = fp
	if err := s.saveLocked(ctx); err != nil {
		return upstream.Fingerprint{}, err
	}
	return fp, nil
}

func (s *Synchronizer) knownFingerprint(ctx context.Context) upstream.Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		s.logger.Warn("Failed to load sync state", zap.Error(err))
		return upstream.Fingerprint{}
	}
	return s.st.Fingerprint
}

func (s *Synchronizer) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	st, err := readState(ctx, s.cache)
	if err != nil {
		if !retry.IsCategory(err, retry.CategoryStructure) {
			return err
		}
		s.logger.Warn("Sync state is unreadable; starting from an empty ledger", zap.Error(err))
		st = state{}
	}
	s.st = st
	s.loaded = true
	return nil
}

func (s *Synchronizer) saveLocked(ctx context.Context) error {
	return persist.WriteJSON(ctx, s.cache, stateKey, s.st)
}

func (s *Synchronizer) saveState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Synchronizer) ledger(key string) (fileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.entry(key)
}

func (s *Synchronizer) setLedger(key string, e fileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.setEntry(key, e)
}

func (s *Synchronizer) dropLedger(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.Files, key)
}

var errUndeclaredAsset = errors.New("asset is not declared in the manifest")
