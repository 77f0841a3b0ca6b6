package checks

import (
	"context"
	"strings"
	"testing"

	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTemplates(t *testing.T) {
	ctx := context.Background()
	store, err := persist.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, schema.TemplateKey("Weapon"),
		strings.NewReader(`{"sourceTableName": "Weapon", "primaryPattern": {"id": 1}}`)))
	require.NoError(t, store.Write(ctx, schema.TemplateKey("Monster"), strings.NewReader(`{"primaryPattern": `)))

	m := &manifest.Manifest{Tables: []manifest.Table{
		{Name: "Weapon", RemotePath: "w.json", Obfuscated: true},
		{Name: "Monster", RemotePath: "m.json", Obfuscated: true},
		{Name: "Reliquary", RemotePath: "r.json", Obfuscated: true},
		{Name: "Avatar", RemotePath: "a.json"},
	}}

	report, err := CheckTemplates(ctx, store, m)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []string{"Reliquary"}, report.Missing)
	assert.Contains(t, report.Invalid, "Monster")
	assert.NotContains(t, report.Invalid, "Weapon")
	assert.False(t, report.Healthy())
}
