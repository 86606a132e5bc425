package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeKey(t *testing.T) {
	key, ok := ShapeKey(map[string]any{"b": 1, "a": 2, "c": nil})
	assert.True(t, ok)
	assert.Equal(t, "a|b|c", key)

	key, ok = ShapeKey(map[string]any{})
	assert.True(t, ok)
	assert.Equal(t, "", key)

	_, ok = ShapeKey("scalar")
	assert.False(t, ok)
}

func TestDedupe_ShapeEquivalence(t *testing.T) {
	in := []any{
		map[string]any{"a": 1, "b": 2},
		map[string]any{"a": 9, "b": 8},
	}
	assert.Equal(t, []any{map[string]any{"a": 1, "b": 2}}, Dedupe(in))
}

func TestDedupe_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		in   []any
	}{
		{"empty", []any{}},
		{"objects", []any{
			map[string]any{"id": 1},
			map[string]any{"id": 2, "x": 1},
			map[string]any{"id": 3},
			map[string]any{"x": 4, "id": 5},
		}},
		{"mixed", []any{1, "a", map[string]any{"k": 1}, 1, map[string]any{"k": 2}, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Dedupe(tt.in)
			assert.Equal(t, once, Dedupe(once))
		})
	}
}

func TestDedupe_KeepsNonObjects(t *testing.T) {
	assert.Equal(t, []any{1, 1, "x"}, Dedupe([]any{1, 1, "x"}))
}

func TestShapeSet_MergeAcrossCalls(t *testing.T) {
	s := newShapeSet()
	s.merge([]any{map[string]any{"id": 1}, map[string]any{"id": 2}})
	s.merge([]any{map[string]any{"id": 3}, map[string]any{"id": 4, "tag": "t"}})

	assert.Equal(t, 2, s.len())
	assert.Equal(t, []any{
		map[string]any{"id": 1},
		map[string]any{"id": 4, "tag": "t"},
	}, s.items)
}
