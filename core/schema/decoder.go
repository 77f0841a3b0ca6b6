package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gamedata-sync/core/retry"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// earlyStopConfidence ends the record scan once a record aligns this well.
	earlyStopConfidence = 0.95
	// alternateThreshold triggers alternate patterns when the primary scores below it.
	alternateThreshold = 0.8
	// DefaultMinConfidence is the confidence below which a decode fails unless partial
	// matches are allowed.
	DefaultMinConfidence = 0.5
	// DefaultEpsilon is the relative numeric tolerance of StrategyFuzzy.
	DefaultEpsilon = 1e-6

	sampleKeyLimit     = 10
	canonicalProbeSize = 8
)

// Options controls a decode.
type Options struct {
	Strategy      Strategy `mapstructure:"strategy" default:"subset"`
	AllowPartial  bool     `mapstructure:"allow_partial" default:"false"`
	MinConfidence float64  `mapstructure:"min_confidence" default:"0.5"`
	Epsilon       float64  `mapstructure:"epsilon" default:"0.000001"`
}

func (o Options) withDefaults() Options {
	if !o.Strategy.Valid() {
		o.Strategy = StrategySubset
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// Result describes how a batch aligned with its template. It is immutable once returned.
type Result struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	// KeyMappings maps obfuscated key paths (e.g. "/AFKDLEJ[0]/BQPWZ") to canonical keys.
	KeyMappings map[string]string `json:"key_mappings"`
	// PartialMatches lists template paths that found no counterpart.
	PartialMatches []string `json:"partial_matches,omitempty"`
	Errors         []string `json:"errors,omitempty"`

	mappings []Mapping
}

// DecodeError reports a batch that aligned below the confidence threshold.
type DecodeError struct {
	Table        string
	Confidence   float64
	SampleKeys   []string
	ExpectedKeys []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("table %s aligned with confidence %.3f; record keys [%s], expected [%s]",
		e.Table, e.Confidence, strings.Join(e.SampleKeys, ", "), strings.Join(e.ExpectedKeys, ", "))
}

// Decoder aligns record batches with compiled templates and memoises the outcome by
// structural signature.
type Decoder struct {
	logger *zap.Logger

	mu   sync.RWMutex
	memo map[uint64]*Result
	sf   singleflight.Group
}

// NewDecoder creates a Decoder with an empty memo.
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{
		logger: logger,
		memo:   make(map[uint64]*Result),
	}
}

// Decode recovers canonical keys for records and returns the rewritten records.
// A decode below the confidence threshold (without AllowPartial) returns the Result and
// a *DecodeError wrapped in a retry.CategoryStructure error.
func (d *Decoder) Decode(tmpl *CompiledTemplate, records []any, opts Options) ([]any, *Result, error) {
	opts = opts.withDefaults()
	sig := Signature(tmpl, records, opts)

	res := d.lookup(sig)
	if res == nil {
		v, _, _ := d.sf.Do(strconv.FormatUint(sig, 16), func() (interface{}, error) {
			if cached := d.lookup(sig); cached != nil {
				return cached, nil
			}
			computed := discover(tmpl, records, opts)
			d.mu.Lock()
			d.memo[sig] = computed
			d.mu.Unlock()
			return computed, nil
		})
		res = v.(*Result)
	} else {
		d.logger.Debug("Decode memo hit", zap.String("table", tmpl.Name))
	}

	if !res.Success {
		return nil, res, retry.New(retry.CategoryStructure, "decode "+tmpl.Name, failure(tmpl, records, res)).
			With("table", tmpl.Name).
			With("confidence", strconv.FormatFloat(res.Confidence, 'f', 3, 64))
	}

	return Rewrite(records, res.mappings), res, nil
}

// DecodeDocument decodes a whole table document: an array is a batch of records, any
// other value is decoded as a batch of one.
func (d *Decoder) DecodeDocument(tmpl *CompiledTemplate, doc any, opts Options) (any, *Result, error) {
	if rows, ok := doc.([]any); ok {
		out, res, err := d.Decode(tmpl, rows, opts)
		if err != nil {
			return nil, res, err
		}
		return out, res, nil
	}
	out, res, err := d.Decode(tmpl, []any{doc}, opts)
	if err != nil {
		return nil, res, err
	}
	return out[0], res, nil
}

func (d *Decoder) lookup(sig uint64) *Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.memo[sig]
}

// Reset clears the memo.
func (d *Decoder) Reset() {
	d.mu.Lock()
	d.memo = make(map[uint64]*Result)
	d.mu.Unlock()
}

// Len returns the number of memoised results.
func (d *Decoder) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.memo)
}

// discover finds the best alignment of any record with any template pattern.
func discover(tmpl *CompiledTemplate, records []any, opts Options) *Result {
	if len(records) == 0 {
		return &Result{Success: true, Confidence: 1, KeyMappings: map[string]string{}}
	}

	for i, rec := range records {
		if i >= canonicalProbeSize {
			break
		}
		if isCanonical(tmpl.Primary, rec) {
			mappings := identityMappings(tmpl.Primary, rec, nil, nil)
			return newResult(true, 1, mappings, nil, nil)
		}
	}

	m := &matcher{strategy: opts.Strategy, epsilon: opts.Epsilon}
	var (
		best  match
		found bool
	)
	scan := func(p Pattern) {
		for _, rec := range records {
			r := m.match(p, rec, nil)
			if !found || r.confidence > best.confidence {
				best, found = r, true
			}
			if best.confidence > earlyStopConfidence {
				return
			}
		}
	}

	scan(tmpl.Primary)
	if best.confidence < alternateThreshold {
		for _, alt := range tmpl.Alternatives {
			if best.confidence > earlyStopConfidence {
				break
			}
			scan(alt)
		}
	}

	if !opts.AllowPartial {
		if best.confidence < opts.MinConfidence {
			msg := fmt.Sprintf("best confidence %.3f is below %.3f", best.confidence, opts.MinConfidence)
			return newResult(false, best.confidence, nil, best.unmatched, []string{msg})
		}
		// exact alignment needs every template element present at full length
		if opts.Strategy == StrategyExact && !best.success {
			return newResult(false, best.confidence, nil, best.unmatched, []string{"no record aligns exactly"})
		}
	}
	return newResult(true, best.confidence, best.mappings, best.unmatched, nil)
}

func newResult(success bool, confidence float64, mappings []Mapping, unmatched, errs []string) *Result {
	res := &Result{
		Success:     success,
		Confidence:  clamp(confidence),
		KeyMappings: make(map[string]string, len(mappings)),
		Errors:      errs,
		mappings:    mappings,
	}
	for _, mp := range mappings {
		res.KeyMappings[mp.Path.String()] = mp.Canonical
	}
	if len(unmatched) > 0 {
		res.PartialMatches = append([]string(nil), unmatched...)
		sort.Strings(res.PartialMatches)
	}
	return res
}

// failure builds the diagnostic for a failed decode from the first object record.
func failure(tmpl *CompiledTemplate, records []any, res *Result) *DecodeError {
	e := &DecodeError{
		Table:        tmpl.Name,
		Confidence:   res.Confidence,
		ExpectedKeys: CanonicalKeys(tmpl.Primary),
	}
	for _, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		for k := range obj {
			e.SampleKeys = append(e.SampleKeys, k)
		}
		sort.Strings(e.SampleKeys)
		if len(e.SampleKeys) > sampleKeyLimit {
			e.SampleKeys = e.SampleKeys[:sampleKeyLimit]
		}
		break
	}
	return e
}

// isCanonical reports whether v already carries every canonical key of p, recursively.
func isCanonical(p Pattern, v any) bool {
	switch p := p.(type) {
	case *Primitive:
		return kindOf(v) == KindPrimitive
	case *Array:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for i := 0; i < min(len(p.Elements), len(arr)); i++ {
			if !isCanonical(p.Elements[i], arr[i]) {
				return false
			}
		}
		return true
	case *Object:
		obj, ok := v.(map[string]any)
		if !ok || len(p.Keys) == 0 {
			return ok
		}
		for _, k := range p.Keys {
			child, present := obj[k]
			if !present || !isCanonical(p.Properties[k], child) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func identityMappings(p Pattern, v any, path KeyPath, out []Mapping) []Mapping {
	switch p := p.(type) {
	case *Array:
		arr := v.([]any)
		for i := 0; i < min(len(p.Elements), len(arr)); i++ {
			out = identityMappings(p.Elements[i], arr[i], path.Index(i), out)
		}
	case *Object:
		obj := v.(map[string]any)
		for _, k := range p.Keys {
			out = append(out, Mapping{Path: path.Key(k), Canonical: k})
			out = identityMappings(p.Properties[k], obj[k], path.Key(k), out)
		}
	}
	return out
}
