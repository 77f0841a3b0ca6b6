package schema

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	signatureSample = 5
	signatureDepth  = 4
)

// Signature fingerprints a decode request: the template identity, the options, the
// sorted union of top-level record keys, and the value-type shape of a small sample of
// records. Batches with the same upstream shape share a signature.
func Signature(tmpl *CompiledTemplate, records []any, opts Options) uint64 {
	h := xxhash.New()

	h.WriteString(tmpl.Name)
	h.WriteString("|")
	h.WriteString(strconv.FormatUint(tmpl.Digest, 16))
	h.WriteString("|")
	h.WriteString(string(opts.Strategy))
	h.WriteString("|")
	h.WriteString(strconv.FormatBool(opts.AllowPartial))
	h.WriteString("|")
	h.WriteString(strconv.FormatFloat(opts.MinConfidence, 'g', -1, 64))
	h.WriteString("|")
	h.WriteString(strconv.FormatFloat(opts.Epsilon, 'g', -1, 64))
	h.WriteString("|")

	keys := make(map[string]struct{})
	for _, rec := range records {
		if obj, ok := rec.(map[string]any); ok {
			for k := range obj {
				keys[k] = struct{}{}
			}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	h.WriteString(strings.Join(sorted, ","))
	h.WriteString("|")

	var b strings.Builder
	for i, rec := range records {
		if i >= signatureSample {
			break
		}
		shape(&b, rec, 0)
		b.WriteString(";")
	}
	h.WriteString(b.String())

	return h.Sum64()
}

// shape writes the value-type fingerprint of v.
func shape(b *strings.Builder, v any, depth int) {
	if depth >= signatureDepth {
		b.WriteString(leafKind(v))
		return
	}
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{")
		for _, k := range keys {
			b.WriteString(k)
			b.WriteString(":")
			shape(b, v[k], depth+1)
			b.WriteString(",")
		}
		b.WriteString("}")
	case []any:
		b.WriteString("[")
		b.WriteString(strconv.Itoa(len(v)))
		if len(v) > 0 {
			b.WriteString(":")
			shape(b, v[0], depth+1)
		}
		b.WriteString("]")
	default:
		b.WriteString(leafKind(v))
	}
}
