package schema

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// GenerateTemplate drafts a template from raw table records. The record with the most
// leaves becomes the primary pattern; up to maxAlternates records whose top-level key
// sets differ from every pattern chosen so far become alternates.
//
// The draft keeps the records' keys verbatim. For an obfuscated table those keys are
// still obfuscated and must be renamed to canonical names by hand before the template
// can decode anything.
func GenerateTemplate(table string, records []any, maxAlternates int, now time.Time) (*Template, error) {
	objects := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if obj, ok := rec.(map[string]any); ok && len(obj) > 0 {
			objects = append(objects, obj)
		}
	}
	if len(objects) == 0 {
		return nil, errors.New("no object records to draft a template from")
	}

	// stable: ties keep table order
	order := make([]int, len(objects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return leafCount(objects[order[a]]) > leafCount(objects[order[b]])
	})

	primary := objects[order[0]]
	t := &Template{
		SourceTableName: table,
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		PrimaryPattern:  primary,
	}

	seen := map[string]bool{keySetOf(primary): true}
	for _, idx := range order[1:] {
		if len(t.AlternativePatterns) >= maxAlternates {
			break
		}
		ks := keySetOf(objects[idx])
		if seen[ks] {
			continue
		}
		seen[ks] = true
		t.AlternativePatterns = append(t.AlternativePatterns, objects[idx])
	}
	return t, nil
}

func keySetOf(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}

func leafCount(v any) int {
	switch v := v.(type) {
	case map[string]any:
		n := 0
		for _, c := range v {
			n += leafCount(c)
		}
		return n
	case []any:
		n := 0
		for _, c := range v {
			n += leafCount(c)
		}
		return n
	default:
		return 1
	}
}
