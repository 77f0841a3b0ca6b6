package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"Number", json.Number("1.5"), 1.5, true},
		{"Int", 3, 3, true},
		{"Float", 2.25, 2.25, true},
		{"Uint8", uint8(7), 7, true},
		{"BadNumber", json.Number("x"), 0, false},
		{"String", "1", 0, false},
		{"Nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToUint64(t *testing.T) {
	u, ok := ToUint64(json.Number("3553451578"))
	assert.True(t, ok)
	assert.Equal(t, uint64(3553451578), u)

	u, ok = ToUint64(json.Number("-1"))
	assert.True(t, ok)
	assert.Equal(t, ^uint64(0), u)

	_, ok = ToUint64(json.Number("1.5"))
	assert.False(t, ok)

	_, ok = ToUint64(1.5)
	assert.False(t, ok)

	u, ok = ToUint64(float64(42))
	assert.True(t, ok)
	assert.Equal(t, uint64(42), u)

	_, ok = ToUint64("42")
	assert.False(t, ok)
}
