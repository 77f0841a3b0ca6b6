package schema

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gamedata-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySource struct {
	docs  map[string]string
	err   error
	reads atomic.Int32
}

func (s *memorySource) Read(_ context.Context, key string) (io.ReadCloser, error) {
	s.reads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	doc, ok := s.docs[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(doc)), nil
}

func TestRegistry_Get(t *testing.T) {
	src := &memorySource{docs: map[string]string{
		"Weapon.json": `{"sourceTableName": "Weapon", "generatedAt": "2024-01-01T00:00:00Z", "primaryPattern": ` + swordTemplate + `}`,
		"Broken.json": `{"primaryPattern": `,
		"Empty.json":  `{"sourceTableName": "Empty", "primaryPattern": {}}`,
		"Avatar.json": `{"primaryPattern": {"id": 10000002}}`,
	}}
	reg := NewRegistry(src, zap.NewNop())
	ctx := context.Background()

	t.Run("CompilesOnce", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ct, err := reg.Get(ctx, "Weapon")
				assert.NoError(t, err)
				assert.Equal(t, "Weapon", ct.Name)
			}()
		}
		wg.Wait()

		first, err := reg.Get(ctx, "Weapon")
		require.NoError(t, err)
		second, err := reg.Get(ctx, "Weapon")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, []string{"id", "name", "tags"}, CanonicalKeys(first.Primary))
		assert.LessOrEqual(t, src.reads.Load(), int32(8))
	})

	t.Run("NameDefaultsToTable", func(t *testing.T) {
		ct, err := reg.Get(ctx, "Avatar")
		require.NoError(t, err)
		assert.Equal(t, "Avatar", ct.Name)
	})

	tests := []struct {
		name  string
		table string
	}{
		{"Missing", "Reliquary"},
		{"Malformed", "Broken"},
		{"EmptyPrimary", "Empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Get(ctx, tt.table)
			require.Error(t, err)
			assert.True(t, retry.IsCategory(err, retry.CategoryTemplate))
			assert.False(t, retry.IsRetryable(err))
		})
	}

	t.Run("TransientSourceError", func(t *testing.T) {
		flaky := &memorySource{err: retry.New(retry.CategoryNetwork, "read", errors.New("connection reset"))}
		_, err := NewRegistry(flaky, zap.NewNop()).Get(ctx, "Weapon")
		require.Error(t, err)
		assert.True(t, retry.IsCategory(err, retry.CategoryNetwork))
	})

	t.Run("Reset", func(t *testing.T) {
		assert.Equal(t, 2, reg.Len())
		reg.Reset()
		assert.Equal(t, 0, reg.Len())
	})
}

func TestTemplate_EncodeRoundTrip(t *testing.T) {
	tmpl, err := ParseTemplate(strings.NewReader(`{"sourceTableName": "Weapon", "generatedAt": "x", "primaryPattern": {"id": 12345678901234567}}`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Encode(&buf))
	assert.Contains(t, buf.String(), `"id": 12345678901234567`)
	assert.NotContains(t, buf.String(), "alternativePatterns")
}

func TestCompileTemplate_Digest(t *testing.T) {
	a := compiled(t, "Weapon", swordTemplate)
	b := compiled(t, "Weapon", swordTemplate)
	c := compiled(t, "Weapon", `{"id": 102}`)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestCompile(t *testing.T) {
	p := Compile(decodeJSON(t, `{"b": [1, {"c": null}], "a": "x"}`))

	obj, ok := p.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, obj.Keys)
	assert.Equal(t, "/b", obj.Paths["b"].String())

	arr, ok := obj.Properties["b"].(*Array)
	require.True(t, ok)
	require.Len(t, arr.Elements, 2)
	assert.Equal(t, KindPrimitive, arr.Elements[0].Kind())

	inner, ok := arr.Elements[1].(*Object)
	require.True(t, ok)
	assert.Equal(t, "/b[1]/c", inner.Paths["c"].String())
	assert.Nil(t, inner.Properties["c"].(*Primitive).Value)
}

func TestKeyPath_String(t *testing.T) {
	tests := []struct {
		name string
		path KeyPath
		want string
	}{
		{"Root", nil, "/"},
		{"Key", KeyPath(nil).Key("id"), "/id"},
		{"Nested", KeyPath(nil).Key("levels").Index(2).Key("exp"), "/levels[2]/exp"},
		{"NestedArrays", KeyPath(nil).Key("grid").Index(0).Index(1), "/grid[0][1]"},
		{"Escaped", KeyPath(nil).Key("a/b").Key("c[0]").Key("~"), "/a~1b/c~20]/~0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())
		})
	}

	t.Run("ExtendDoesNotAlias", func(t *testing.T) {
		base := make(KeyPath, 0, 4).Key("a")
		x := base.Key("x")
		y := base.Key("y")
		assert.Equal(t, "/a/x", x.String())
		assert.Equal(t, "/a/y", y.String())
	})
}

func TestGenerateTemplate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	rows := records(t, `[
		{"A": 1, "B": "x"},
		{"A": 2, "B": "y", "C": [1, 2, 3]},
		{"A": 3, "B": "z"},
		{"A": 4, "D": true},
		{"E": {"F": 1}},
		"not an object",
		{}
	]`)

	tmpl, err := GenerateTemplate("Weapon", rows, 2, now)
	require.NoError(t, err)

	assert.Equal(t, "Weapon", tmpl.SourceTableName)
	assert.Equal(t, "2024-03-01T11:00:00Z", tmpl.GeneratedAt)
	assert.Contains(t, tmpl.PrimaryPattern, "C")
	require.Len(t, tmpl.AlternativePatterns, 2)
	assert.Equal(t, rows[0], map[string]any(tmpl.AlternativePatterns[0]))
	assert.Equal(t, rows[3], map[string]any(tmpl.AlternativePatterns[1]))

	t.Run("DecodesItsOwnTable", func(t *testing.T) {
		ct, err := CompileTemplate(tmpl)
		require.NoError(t, err)
		out, res, err := NewDecoder(zap.NewNop()).Decode(ct, rows[:3], Options{})
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, rows[:3], out)
	})

	t.Run("NoObjects", func(t *testing.T) {
		_, err := GenerateTemplate("Weapon", records(t, `[1, [], {}]`), 2, now)
		assert.Error(t, err)
	})
}
