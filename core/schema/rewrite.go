package schema

import "sort"

// rewriteNode is a trie over obfuscated key paths. Array indices collapse into a
// single elem child so a mapping learned on one element applies to all of them.
type rewriteNode struct {
	rename   map[string]string
	children map[string]*rewriteNode
	elem     *rewriteNode
}

func (n *rewriteNode) child(key string) *rewriteNode {
	if n.children == nil {
		n.children = make(map[string]*rewriteNode)
	}
	c, ok := n.children[key]
	if !ok {
		c = &rewriteNode{}
		n.children[key] = c
	}
	return c
}

func (n *rewriteNode) element() *rewriteNode {
	if n.elem == nil {
		n.elem = &rewriteNode{}
	}
	return n.elem
}

func buildTrie(mappings []Mapping) *rewriteNode {
	root := &rewriteNode{}
	for _, mp := range mappings {
		if len(mp.Path) == 0 || mp.Path[len(mp.Path)-1].IsIndex {
			continue
		}
		node := root
		for _, seg := range mp.Path[:len(mp.Path)-1] {
			if seg.IsIndex {
				node = node.element()
			} else {
				node = node.child(seg.Key)
			}
		}
		last := mp.Path[len(mp.Path)-1].Key
		if node.rename == nil {
			node.rename = make(map[string]string)
		}
		// first mapping wins when array elements disagree
		if _, exists := node.rename[last]; !exists {
			node.rename[last] = mp.Canonical
		}
	}
	return root
}

// Rewrite applies path mappings to every record and returns new records. Inputs are
// not modified. Unmapped keys are kept unless a mapped key already claimed their name.
func Rewrite(records []any, mappings []Mapping) []any {
	trie := buildTrie(mappings)
	out := make([]any, len(records))
	for i, rec := range records {
		out[i] = trie.apply(rec)
	}
	return out
}

func (n *rewriteNode) apply(v any) any {
	if n == nil {
		return v
	}
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for _, k := range keys {
			name, ok := n.rename[k]
			if !ok {
				continue
			}
			if _, taken := out[name]; !taken {
				out[name] = n.children[k].apply(v[k])
			}
		}
		for _, k := range keys {
			if _, ok := n.rename[k]; ok {
				continue
			}
			if _, taken := out[k]; taken {
				continue
			}
			out[k] = n.children[k].apply(v[k])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = n.elem.apply(el)
		}
		return out
	default:
		return v
	}
}
