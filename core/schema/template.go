package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"gamedata-sync/core/retry"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Template is a curated reference record whose keys are canonical field names.
type Template struct {
	SourceTableName     string           `json:"sourceTableName"`
	GeneratedAt         string           `json:"generatedAt"`
	PrimaryPattern      map[string]any   `json:"primaryPattern"`
	AlternativePatterns []map[string]any `json:"alternativePatterns,omitempty"`
}

// CompiledTemplate is a Template compiled into pattern trees. It is read-only and may be
// shared across decode calls.
type CompiledTemplate struct {
	Name         string
	GeneratedAt  string
	Primary      Pattern
	Alternatives []Pattern
	// Digest identifies the template content for memoisation.
	Digest uint64
}

// ParseTemplate reads a template document. Numbers keep their literal form.
func ParseTemplate(r io.Reader) (*Template, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var t Template
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &t, nil
}

// Encode writes the template as indented JSON.
func (t *Template) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// CompileTemplate compiles the primary and alternative patterns of t.
func CompileTemplate(t *Template) (*CompiledTemplate, error) {
	if len(t.PrimaryPattern) == 0 {
		return nil, fmt.Errorf("template %q has an empty primary pattern", t.SourceTableName)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(t); err != nil {
		return nil, fmt.Errorf("failed to digest template %q: %w", t.SourceTableName, err)
	}

	ct := &CompiledTemplate{
		Name:         t.SourceTableName,
		GeneratedAt:  t.GeneratedAt,
		Primary:      Compile(t.PrimaryPattern),
		Alternatives: make([]Pattern, 0, len(t.AlternativePatterns)),
		Digest:       xxhash.Sum64(buf.Bytes()),
	}
	for _, alt := range t.AlternativePatterns {
		if len(alt) == 0 {
			continue
		}
		ct.Alternatives = append(ct.Alternatives, Compile(alt))
	}
	return ct, nil
}

// Source reads template documents by key.
type Source interface {
	Read(ctx context.Context, key string) (io.ReadCloser, error)
}

// Registry loads templates from a Source once and caches the compiled form for its
// own lifetime.
type Registry struct {
	src    Source
	logger *zap.Logger

	mu       sync.RWMutex
	compiled map[string]*CompiledTemplate
	sf       singleflight.Group
}

// NewRegistry creates a Registry reading "<table>.json" documents from src.
func NewRegistry(src Source, logger *zap.Logger) *Registry {
	return &Registry{
		src:      src,
		logger:   logger,
		compiled: make(map[string]*CompiledTemplate),
	}
}

// TemplateKey returns the source key of a table's template.
func TemplateKey(table string) string {
	return table + ".json"
}

// Get returns the compiled template of a table. A missing or unreadable template is a
// retry.CategoryTemplate error; transient source failures keep their own category.
func (r *Registry) Get(ctx context.Context, table string) (*CompiledTemplate, error) {
	r.mu.RLock()
	ct, ok := r.compiled[table]
	r.mu.RUnlock()
	if ok {
		return ct, nil
	}

	v, err, _ := r.sf.Do(table, func() (interface{}, error) {
		r.mu.RLock()
		ct, ok := r.compiled[table]
		r.mu.RUnlock()
		if ok {
			return ct, nil
		}

		ct, err := r.load(ctx, table)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.compiled[table] = ct
		r.mu.Unlock()

		r.logger.Debug("Compiled template",
			zap.String("table", table),
			zap.String("generated_at", ct.GeneratedAt),
			zap.Int("alternatives", len(ct.Alternatives)),
		)
		return ct, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompiledTemplate), nil
}

func (r *Registry) load(ctx context.Context, table string) (*CompiledTemplate, error) {
	key := TemplateKey(table)
	op := "load template " + key

	rc, err := r.src.Read(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, retry.New(retry.CategoryTemplate, op, errors.New("template not found")).With("table", table)
		}
		if retry.IsRetryable(err) {
			return nil, err
		}
		return nil, retry.New(retry.CategoryTemplate, op, err).With("table", table)
	}
	defer rc.Close()

	t, err := ParseTemplate(rc)
	if err != nil {
		return nil, retry.New(retry.CategoryTemplate, op, err).With("table", table)
	}
	if t.SourceTableName == "" {
		t.SourceTableName = table
	}

	ct, err := CompileTemplate(t)
	if err != nil {
		return nil, retry.New(retry.CategoryTemplate, op, err).With("table", table)
	}
	return ct, nil
}

// Reset drops every compiled template.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.compiled = make(map[string]*CompiledTemplate)
	r.mu.Unlock()
}

// Len returns the number of compiled templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.compiled)
}
