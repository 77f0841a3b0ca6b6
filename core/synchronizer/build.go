package synchronizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"gamedata-sync/core/integrity"
	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/retry"
	"gamedata-sync/core/schema"
	"gamedata-sync/core/snapshot"
	"gamedata-sync/core/textmap"
	"gamedata-sync/core/upstream"
	"gamedata-sync/core/utils"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TextMapKey is the cache key of a language's filtered text map.
func TextMapKey(lang string) string {
	return "textmap/TextMap" + lang + ".json"
}

type verifyFunc func(key string, data []byte) error

// build downloads, decodes and assembles a snapshot for fp without publishing it.
func (s *Synchronizer) build(ctx context.Context, fp upstream.Fingerprint, req Request, fetched *atomic.Int32) (*snapshot.Snapshot, []string, error) {
	docs := make([]any, len(req.Tables))
	results := make([]*schema.Result, len(req.Tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency())
	for i, t := range req.Tables {
		g.Go(func() error {
			doc, res, err := s.loadTable(gctx, fp, t, fetched)
			if err != nil {
				return err
			}
			docs[i], results[i] = doc, res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	required := textHashes(req.Tables, docs)
	digest := hashSetDigest(required)

	texts := make([]map[uint64]string, len(req.Languages))
	verified := make([]bool, len(req.Assets))
	var (
		assetMu   sync.Mutex
		assetErrs []string
	)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency())
	for i, lang := range req.Languages {
		g.Go(func() error {
			entries, err := s.loadTextMap(gctx, fp, lang, required, digest, fetched)
			if err != nil {
				return err
			}
			texts[i] = entries
			return nil
		})
	}
	for i, a := range req.Assets {
		g.Go(func() error {
			if _, err := s.fetchVerified(gctx, fp, a.RemotePath, a.LocalKey(), verifyAsset, fetched); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("Asset failed; publishing without it",
					zap.String("asset", a.Name),
					zap.String("category", string(retry.Classify(err))),
					zap.Error(err),
				)
				assetMu.Lock()
				assetErrs = append(assetErrs, a.Name)
				assetMu.Unlock()
				return nil
			}
			verified[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Strings(assetErrs)

	snap := &snapshot.Snapshot{
		Revision:   fp.ID,
		Timestamp:  fp.Timestamp,
		BuiltAt:    s.now(),
		Tables:     make(map[string]any, len(req.Tables)),
		Confidence: make(map[string]float64),
		Texts:      make(map[string]map[uint64]string, len(req.Languages)),
		Assets:     make(map[string]bool, len(req.Assets)),
	}
	for i, t := range req.Tables {
		snap.Tables[t.Name] = docs[i]
		if results[i] != nil {
			snap.Confidence[t.Name] = results[i].Confidence
		}
	}
	for i, lang := range req.Languages {
		snap.Texts[lang] = texts[i]
	}
	for i, a := range req.Assets {
		snap.Assets[a.Name] = verified[i]
	}
	return snap, assetErrs, nil
}

// loadTable returns the published form of t: the decoded document for obfuscated
// tables, the raw document otherwise.
func (s *Synchronizer) loadTable(ctx context.Context, fp upstream.Fingerprint, t manifest.Table, fetched *atomic.Int32) (any, *schema.Result, error) {
	data, err := s.fetchVerified(ctx, fp, t.RemotePath, t.LocalKey(), verifyJSON, fetched)
	if err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, retry.New(retry.CategoryStructure, "parse table "+t.Name, err).With("table", t.Name)
	}
	if !t.Obfuscated {
		return doc, nil, nil
	}

	tmpl, err := s.templates.Get(ctx, t.Name)
	if err != nil {
		return nil, nil, err
	}
	out, res, err := s.decoder.DecodeDocument(tmpl, doc, s.cfg.Decode)
	if err != nil {
		return nil, res, err
	}

	fields := []zap.Field{
		zap.String("table", t.Name),
		zap.Float64("confidence", res.Confidence),
		zap.Int("mapped_keys", len(res.KeyMappings)),
	}
	if len(res.PartialMatches) > 0 {
		s.logger.Warn("Decoded table with unmatched template keys", append(fields, zap.Strings("unmatched", res.PartialMatches))...)
	} else {
		s.logger.Debug("Decoded table", fields...)
	}
	return out, res, nil
}

// fetchVerified returns the content of a cache file, fetching it when the cached copy
// belongs to another revision, is missing, or fails verify. A download failing verify
// is an integrity error and is fetched once more.
func (s *Synchronizer) fetchVerified(ctx context.Context, fp upstream.Fingerprint, remote, key string, verify verifyFunc, fetched *atomic.Int32) ([]byte, error) {
	if e, ok := s.ledger(key); ok && e.Revision == fp.ID {
		data, err := persist.ReadAll(ctx, s.cache, key)
		switch {
		case err == nil:
			verr := verify(key, data)
			if verr == nil {
				return data, nil
			}
			s.logger.Warn("Cached file failed verification; fetching it again", zap.String("key", key), zap.Error(verr))
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("Cached file is missing; fetching it again", zap.String("key", key))
		default:
			s.logger.Warn("Failed to read cached file; fetching it again", zap.String("key", key), zap.Error(err))
		}
	}

	data, err := retry.Do(ctx, s.retrier, "fetch "+remote, func() ([]byte, error) {
		if fetched != nil {
			fetched.Add(1)
		}
		rc, err := s.upstream.Fetch(ctx, fp.ID, remote)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, bodyError(ctx, "read "+remote, err)
		}
		if err := verify(key, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Write(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to cache %s: %w", key, err)
	}
	s.setLedger(key, fileEntry{Revision: fp.ID})
	return data, nil
}

// loadTextMap returns the entries of lang's text map restricted to required.
func (s *Synchronizer) loadTextMap(ctx context.Context, fp upstream.Fingerprint, lang string, required textmap.HashSet, digest string, fetched *atomic.Int32) (map[uint64]string, error) {
	key := TextMapKey(lang)
	remote := s.manifest.TextMapFile(lang)

	if e, ok := s.ledger(key); ok && e.Revision == fp.ID && e.Digest == digest {
		entries, err := s.readTextMap(ctx, key, required)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("Cached text map is unusable; fetching it again", zap.String("key", key), zap.Error(err))
	}

	entries, err := s.fetchTextMap(ctx, fp, remote, required, fetched)
	if textmap.IsStructureError(err) {
		s.logger.Warn("Text map is malformed; downloading it again",
			zap.String("language", lang),
			zap.Error(err),
		)
		entries, err = s.fetchTextMap(ctx, fp, remote, required, fetched)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := textmap.Write(&buf, entries); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.cache.Write(ctx, key, &buf); err != nil {
		return nil, fmt.Errorf("failed to cache %s: %w", key, err)
	}
	s.setLedger(key, fileEntry{Revision: fp.ID, Digest: digest})

	s.logger.Debug("Filtered text map",
		zap.String("language", lang),
		zap.Int("required", len(required)),
		zap.Int("kept", len(entries)),
	)
	return entries, nil
}

func (s *Synchronizer) fetchTextMap(ctx context.Context, fp upstream.Fingerprint, remote string, required textmap.HashSet, fetched *atomic.Int32) (map[uint64]string, error) {
	return retry.Do(ctx, s.retrier, "fetch "+remote, func() (map[uint64]string, error) {
		if fetched != nil {
			fetched.Add(1)
		}
		rc, err := s.upstream.Fetch(ctx, fp.ID, remote)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		entries, err := textmap.Collect(rc, required)
		if err != nil && !textmap.IsStructureError(err) && retry.Classify(err) == retry.CategoryUnknown {
			return nil, bodyError(ctx, "read "+remote, err)
		}
		return entries, err
	})
}

func (s *Synchronizer) readTextMap(ctx context.Context, key string, required textmap.HashSet) (map[uint64]string, error) {
	rc, err := s.cache.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return textmap.Collect(rc, required)
}

// bodyError categorises a failure while streaming a response body. Anything but a
// cancellation is treated as a dropped connection.
func bodyError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return retry.New(retry.CategoryNetwork, op, err)
}

func verifyJSON(key string, data []byte) error {
	if err := integrity.CheckNamed(key, data); err != nil {
		return err
	}
	if !json.Valid(data) {
		return retry.New(retry.CategoryIntegrity, "verify "+key, &integrity.CorruptionError{
			Name:   key,
			Format: integrity.FormatJSON,
			Reason: "invalid JSON",
		})
	}
	return nil
}

func verifyAsset(key string, data []byte) error {
	return integrity.CheckNamed(key, data)
}

// textHashes collects the text-map hashes referenced by the text fields of docs.
func textHashes(tables []manifest.Table, docs []any) textmap.HashSet {
	set := textmap.NewHashSet()
	for i, t := range tables {
		collectHashes(t, docs[i], set)
	}
	return set
}

func collectHashes(t manifest.Table, v any, set textmap.HashSet) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			if t.IsTextField(k) {
				if h, ok := utils.ToUint64(child); ok {
					set.Add(h)
					continue
				}
			}
			collectHashes(t, child, set)
		}
	case []any:
		for _, child := range v {
			collectHashes(t, child, set)
		}
	}
}

func hashSetDigest(set textmap.HashSet) string {
	hashes := make([]uint64, 0, len(set))
	for h := range set {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		for i := range buf {
			buf[i] = byte(h >> (8 * i))
		}
		_, _ = d.Write(buf[:])
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
