package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gamedata-sync/core/integrity"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/retry"

	"go.uber.org/zap"
)

// Asset returns the verified content of a declared asset. A missing or corrupted
// cached copy is fetched again once.
func (s *Synchronizer) Asset(ctx context.Context, name string) ([]byte, error) {
	a, ok := s.manifest.Asset(name)
	if !ok {
		return nil, retry.New(retry.CategoryNotFound, "asset "+name, errUndeclaredAsset)
	}

	fp, err := s.fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.fetchVerified(ctx, fp, a.RemotePath, a.LocalKey(), verifyAsset, nil)
	if err != nil {
		return nil, err
	}
	if err := s.saveState(ctx); err != nil {
		s.logger.Warn("Failed to persist sync state", zap.Error(err))
	}
	return data, nil
}

// Report is the outcome of a cache verification.
type Report struct {
	Checked   int      `json:"checked"`
	Corrupted []string `json:"corrupted"`
	// Missing lists ledger entries whose file is gone.
	Missing []string `json:"missing"`
	Removed []string `json:"removed,omitempty"`
}

// Healthy reports whether nothing was found wrong.
func (r *Report) Healthy() bool {
	return len(r.Corrupted) == 0 && len(r.Missing) == 0
}

// VerifyCache checks every cached file against its format markers. With fix, corrupted
// files are deleted, their ledger entries dropped and the published revision
// forgotten, so the next sync rebuilds and fetches them again.
func (s *Synchronizer) VerifyCache(ctx context.Context, fix bool) (*Report, error) {
	keys, err := s.cache.List(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &Report{Corrupted: []string{}, Missing: []string{}}
	present := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == stateKey {
			continue
		}
		present[key] = true
		report.Checked++

		data, err := persist.ReadAll(ctx, s.cache, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		verify := verifyAsset
		if strings.HasSuffix(key, ".json") {
			verify = verifyJSON
		}
		if verr := verify(key, data); verr != nil {
			var ce *integrity.CorruptionError
			reason := verr.Error()
			if errors.As(verr, &ce) {
				reason = ce.Reason
			}
			s.logger.Warn("Corrupted cache file", zap.String("key", key), zap.String("reason", reason))
			report.Corrupted = append(report.Corrupted, key)
		}
	}

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for key := range s.st.Files {
		if !present[key] {
			report.Missing = append(report.Missing, key)
		}
	}
	s.mu.Unlock()
	sort.Strings(report.Missing)

	if !fix || report.Healthy() {
		return report, nil
	}

	for _, key := range report.Corrupted {
		if err := s.cache.Remove(ctx, key); err != nil {
			return report, err
		}
		s.dropLedger(key)
		report.Removed = append(report.Removed, key)
	}
	for _, key := range report.Missing {
		s.dropLedger(key)
	}
	s.mu.Lock()
	s.st.Published = ""
	s.mu.Unlock()
	if err := s.saveState(ctx); err != nil {
		return report, err
	}

	s.logger.Info("Repaired cache",
		zap.Int("removed", len(report.Removed)),
		zap.Int("forgotten", len(report.Missing)),
	)
	return report, nil
}
