package schema

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind tags a Pattern variant.
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Pattern is a compiled template node. The only implementations are *Primitive,
// *Array and *Object.
type Pattern interface {
	Kind() Kind
	pattern()
}

// Primitive matches a literal leaf value.
type Primitive struct {
	Value any
}

// Array matches a JSON array element by element.
type Array struct {
	Elements []Pattern
}

// Object matches a JSON object property by property.
type Object struct {
	// Properties maps each canonical key to the pattern of its value.
	Properties map[string]Pattern
	// Paths maps each canonical key to its location in the template.
	Paths map[string]KeyPath
	// Keys lists the canonical keys in matching order.
	Keys []string
}

func (*Primitive) Kind() Kind { return KindPrimitive }
func (*Array) Kind() Kind     { return KindArray }
func (*Object) Kind() Kind    { return KindObject }

func (*Primitive) pattern() {}
func (*Array) pattern()     {}
func (*Object) pattern()    {}

// Compile builds the pattern tree for a JSON-decoded value.
func Compile(value any) Pattern {
	return compileAt(value, nil)
}

func compileAt(value any, path KeyPath) Pattern {
	switch v := value.(type) {
	case map[string]any:
		obj := &Object{
			Properties: make(map[string]Pattern, len(v)),
			Paths:      make(map[string]KeyPath, len(v)),
			Keys:       make([]string, 0, len(v)),
		}
		for k, child := range v {
			p := path.Key(k)
			obj.Properties[k] = compileAt(child, p)
			obj.Paths[k] = p
			obj.Keys = append(obj.Keys, k)
		}
		sort.Strings(obj.Keys)
		return obj
	case []any:
		arr := &Array{Elements: make([]Pattern, len(v))}
		for i, child := range v {
			arr.Elements[i] = compileAt(child, path.Index(i))
		}
		return arr
	default:
		return &Primitive{Value: v}
	}
}

// CanonicalKeys returns the top-level canonical keys of an object pattern.
func CanonicalKeys(p Pattern) []string {
	if obj, ok := p.(*Object); ok {
		return append([]string(nil), obj.Keys...)
	}
	return nil
}

// Segment is one step of a KeyPath: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeyPath locates a value inside a JSON document.
type KeyPath []Segment

// Key returns a new path extended with an object key.
func (p KeyPath) Key(k string) KeyPath {
	out := make(KeyPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: k})
}

// Index returns a new path extended with an array index.
func (p KeyPath) Index(i int) KeyPath {
	out := make(KeyPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i, IsIndex: true})
}

var pathEscaper = strings.NewReplacer("~", "~0", "/", "~1", "[", "~2")

// String renders the path as "/key/list[0]/key". Keys are escaped so the rendering is
// unambiguous.
func (p KeyPath) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p {
		if s.IsIndex {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteString("]")
			continue
		}
		b.WriteString("/")
		b.WriteString(pathEscaper.Replace(s.Key))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p KeyPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// kindOf returns the pattern kind a JSON value would compile to.
func kindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindPrimitive
	}
}

// leafKind distinguishes primitive JSON types for positional array alignment.
func leafKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "other"
	}
}
