package checks

import (
	"context"
	"errors"
	"io/fs"

	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/schema"
)

// TemplateReport lists obfuscated tables whose canonical template is unusable.
type TemplateReport struct {
	Checked int      `json:"checked"`
	Missing []string `json:"missing"`
	// Invalid maps a table to the reason its template does not compile.
	Invalid map[string]string `json:"invalid"`
}

// Healthy reports whether every template loads.
func (r *TemplateReport) Healthy() bool {
	return len(r.Missing) == 0 && len(r.Invalid) == 0
}

// CheckTemplates loads and compiles the template of every obfuscated manifest table.
func CheckTemplates(ctx context.Context, store persist.Store, m *manifest.Manifest) (*TemplateReport, error) {
	report := &TemplateReport{Missing: []string{}, Invalid: map[string]string{}}

	for _, t := range m.Tables {
		if !t.Obfuscated {
			continue
		}
		report.Checked++

		rc, err := store.Read(ctx, schema.TemplateKey(t.Name))
		if errors.Is(err, fs.ErrNotExist) {
			report.Missing = append(report.Missing, t.Name)
			continue
		}
		if err != nil {
			return nil, err
		}

		tmpl, err := schema.ParseTemplate(rc)
		rc.Close()
		if err == nil {
			_, err = schema.CompileTemplate(tmpl)
		}
		if err != nil {
			report.Invalid[t.Name] = err.Error()
		}
	}
	return report, nil
}
