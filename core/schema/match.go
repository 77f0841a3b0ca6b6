package schema

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"gamedata-sync/core/utils"
)

// Strategy selects how strictly leaf values must agree.
type Strategy string

const (
	// StrategyExact requires every element and property to match.
	StrategyExact Strategy = "exact"
	// StrategySubset accepts partial structures; null values are interchangeable.
	StrategySubset Strategy = "subset"
	// StrategyFuzzy additionally compares strings case-insensitively and numbers
	// within an epsilon.
	StrategyFuzzy Strategy = "fuzzy"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyExact, StrategySubset, StrategyFuzzy:
		return true
	default:
		return false
	}
}

// Mapping binds an obfuscated key occurrence to the canonical key it matched.
type Mapping struct {
	Path      KeyPath
	Canonical string
}

// match is the outcome of aligning one pattern with one value.
type match struct {
	confidence float64
	success    bool
	// anchors counts literal leaf equalities; it breaks confidence ties between
	// candidate keys.
	anchors   int
	mappings  []Mapping
	unmatched []string
}

type matcher struct {
	strategy Strategy
	epsilon  float64
}

func (m *matcher) match(p Pattern, v any, path KeyPath) match {
	switch p := p.(type) {
	case *Primitive:
		return m.matchPrimitive(p, v)
	case *Array:
		return m.matchArray(p, v, path)
	case *Object:
		return m.matchObject(p, v, path)
	default:
		return match{}
	}
}

func (m *matcher) matchPrimitive(p *Primitive, v any) match {
	if kindOf(v) != KindPrimitive {
		return match{}
	}
	if m.leafEqual(p.Value, v) {
		return match{confidence: 1, success: true, anchors: 1}
	}
	return match{}
}

func (m *matcher) leafEqual(want, got any) bool {
	if m.strategy != StrategyExact && want == nil && got == nil {
		return true
	}
	switch w := want.(type) {
	case nil:
		return got == nil
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	case string:
		g, ok := got.(string)
		if !ok {
			return false
		}
		if m.strategy == StrategyFuzzy {
			return strings.EqualFold(w, g)
		}
		return w == g
	default:
		return m.numberEqual(want, got)
	}
}

func (m *matcher) numberEqual(want, got any) bool {
	if wn, ok := want.(json.Number); ok {
		if gn, ok := got.(json.Number); ok && wn == gn {
			return true
		}
	}
	a, ok := utils.ToFloat(want)
	if !ok {
		return false
	}
	b, ok := utils.ToFloat(got)
	if !ok {
		return false
	}
	if m.strategy == StrategyFuzzy {
		scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
		return math.Abs(a-b) <= m.epsilon*scale
	}
	return a == b
}

func (m *matcher) matchArray(p *Array, v any, path KeyPath) match {
	arr, ok := v.([]any)
	if !ok {
		return match{}
	}

	lp, lv := len(p.Elements), len(arr)
	if lp == 0 {
		switch {
		case lv == 0:
			return match{confidence: 1, success: true}
		case m.strategy == StrategyExact:
			return match{}
		default:
			// an empty template array says nothing about the record's elements
			return match{confidence: 0.5, success: true}
		}
	}

	n := min(lp, lv)
	var (
		res     match
		sum     float64
		matched int
	)
	for i := 0; i < n; i++ {
		var r match
		if prim, ok := p.Elements[i].(*Primitive); ok && m.strategy != StrategyExact {
			r = m.matchPrimitive(prim, arr[i])
			// array elements are positional data: a differing value of the same
			// JSON type still aligns, it just does not anchor
			if !r.success && leafKind(prim.Value) == leafKind(arr[i]) {
				r = match{confidence: 1, success: true}
			}
		} else {
			r = m.match(p.Elements[i], arr[i], path.Index(i))
		}
		if !r.success {
			continue
		}
		matched++
		sum += r.confidence
		res.anchors += r.anchors
		res.mappings = append(res.mappings, r.mappings...)
		res.unmatched = append(res.unmatched, r.unmatched...)
	}

	res.confidence = clamp(sum / float64(lp))
	if m.strategy == StrategyExact {
		res.success = matched == lp && lv == lp
	} else {
		res.success = matched > 0
	}
	return res
}

func (m *matcher) matchObject(p *Object, v any, path KeyPath) match {
	obj, ok := v.(map[string]any)
	if !ok {
		return match{}
	}

	if len(p.Keys) == 0 {
		switch {
		case len(obj) == 0:
			return match{confidence: 1, success: true}
		case m.strategy == StrategyExact:
			return match{}
		default:
			return match{confidence: 0.5, success: true}
		}
	}

	candidates := make([]string, 0, len(obj))
	for k := range obj {
		candidates = append(candidates, k)
	}
	sort.Strings(candidates)

	// score every admissible (canonical, key) pair, then pick the assignment with
	// the highest total so that a looser strategy never loses a pairing a
	// stricter one found
	pairs := make([][]match, len(p.Keys))
	admissible := make([][]bool, len(p.Keys))
	for i, canonical := range p.Keys {
		sub := p.Properties[canonical]
		pairs[i] = make([]match, len(candidates))
		admissible[i] = make([]bool, len(candidates))
		for j, key := range candidates {
			val := obj[key]
			if kindOf(val) != sub.Kind() {
				continue
			}
			if r := m.match(sub, val, path.Key(key)); r.success {
				pairs[i][j], admissible[i][j] = r, true
			}
		}
	}
	chosen := assign(len(p.Keys), len(candidates), func(i, j int) (score, bool) {
		if !admissible[i][j] {
			return score{}, false
		}
		s := score{conf: pairs[i][j].confidence, anchors: pairs[i][j].anchors}
		if candidates[j] == p.Keys[i] {
			s.named = 1
		}
		return s, true
	})

	var (
		res     match
		sum     float64
		matched int
	)
	for i, canonical := range p.Keys {
		j := chosen[i]
		if j < 0 {
			res.unmatched = append(res.unmatched, p.Paths[canonical].String())
			continue
		}
		best := pairs[i][j]
		matched++
		sum += best.confidence
		res.anchors += best.anchors
		res.mappings = append(res.mappings, Mapping{Path: path.Key(candidates[j]), Canonical: canonical})
		res.mappings = append(res.mappings, best.mappings...)
		res.unmatched = append(res.unmatched, best.unmatched...)
	}

	res.confidence = clamp(sum / float64(len(p.Keys)))
	if m.strategy == StrategyExact {
		res.success = matched == len(p.Keys)
	} else {
		res.success = matched > 0
	}
	return res
}

// score orders object alignments: total confidence first, then anchors, then
// keys whose obfuscated name equals the canonical one.
type score struct {
	conf    float64
	anchors int
	named   int
}

// confidence sums of equal assignments can differ in the last bits depending on
// summation order
const scoreTolerance = 1e-12

func (a score) add(b score) score {
	return score{conf: a.conf + b.conf, anchors: a.anchors + b.anchors, named: a.named + b.named}
}

func (a score) sub(b score) score {
	return score{conf: a.conf - b.conf, anchors: a.anchors - b.anchors, named: a.named - b.named}
}

func (a score) less(b score) bool {
	if d := a.conf - b.conf; math.Abs(d) > scoreTolerance {
		return d < 0
	}
	if a.anchors != b.anchors {
		return a.anchors < b.anchors
	}
	return a.named < b.named
}

// assign pairs rows with columns so that the summed gain is maximal, each column
// used at most once. gain reports false for pairs that cannot be formed. The
// result holds the column chosen for each row, or -1.
//
// It runs the Hungarian method on negated gains; every row also gets a private
// zero-gain column so that leaving it unmatched is always feasible.
func assign(rows, cols int, gain func(i, j int) (score, bool)) []int {
	width := cols + rows
	cost := func(i, j int) score {
		if j <= cols {
			if g, ok := gain(i-1, j-1); ok {
				return score{}.sub(g)
			}
		}
		return score{}
	}
	inf := score{conf: math.Inf(1)}

	// potentials and the current matching, 1-indexed with column 0 as the root
	u := make([]score, rows+1)
	v := make([]score, width+1)
	owner := make([]int, width+1)
	way := make([]int, width+1)
	for i := 1; i <= rows; i++ {
		owner[0] = i
		j0 := 0
		minv := make([]score, width+1)
		for j := range minv {
			minv[j] = inf
		}
		used := make([]bool, width+1)
		for {
			used[j0] = true
			i0, delta, j1 := owner[j0], inf, 0
			for j := 1; j <= width; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0, j).sub(u[i0]).sub(v[j])
				if cur.less(minv[j]) {
					minv[j], way[j] = cur, j0
				}
				if minv[j].less(delta) {
					delta, j1 = minv[j], j
				}
			}
			for j := 0; j <= width; j++ {
				if used[j] {
					u[owner[j]] = u[owner[j]].add(delta)
					v[j] = v[j].sub(delta)
				} else {
					minv[j] = minv[j].sub(delta)
				}
			}
			j0 = j1
			if owner[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			owner[j0] = owner[j1]
			j0 = j1
		}
	}

	out := make([]int, rows)
	for i := range out {
		out[i] = -1
	}
	for j := 1; j <= cols; j++ {
		if i := owner[j]; i != 0 {
			if _, ok := gain(i-1, j-1); ok {
				out[i-1] = j - 1
			}
		}
	}
	return out
}

func clamp(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
