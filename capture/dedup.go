package capture

import (
	"sort"
	"strings"
)

// ShapeKey returns the deduplication key of v: its sorted, pipe-joined
// property names. ok is false for values that are not objects.
//
// Two records that share a key set collapse even when they are different
// entities. Deduplication is by shape, not identity.
func ShapeKey(v any) (key string, ok bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|"), true
}

// Dedupe keeps the first item seen for every shape key, preserving order.
// Non-object items carry no shape and are always kept.
func Dedupe(items []any) []any {
	seen := make(map[string]struct{}, len(items))
	out := make([]any, 0, len(items))
	for _, it := range items {
		if key, ok := ShapeKey(it); ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

// shapeSet is the running, insertion-ordered deduplication store of one
// capture session.
type shapeSet struct {
	seen  map[string]struct{}
	items []any
}

func newShapeSet() *shapeSet {
	return &shapeSet{seen: make(map[string]struct{})}
}

// merge adds the survivors of items that are not already present.
func (s *shapeSet) merge(items []any) {
	for _, it := range Dedupe(items) {
		if key, ok := ShapeKey(it); ok {
			if _, dup := s.seen[key]; dup {
				continue
			}
			s.seen[key] = struct{}{}
		}
		s.items = append(s.items, it)
	}
}

func (s *shapeSet) len() int { return len(s.items) }
