package manifest

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"gamedata-sync/core/retry"

	"github.com/spf13/viper"
)

// DefaultTextFieldSuffix marks record fields holding text-map hashes when a table lists
// no explicit text fields.
const DefaultTextFieldSuffix = "TextMapHash"

// DefaultTextMapPath is the upstream location of a language's text map.
const DefaultTextMapPath = "TextMap/TextMap{lang}.json"

// Table is a logical table: one upstream JSON file.
type Table struct {
	Name       string `mapstructure:"name"`
	RemotePath string `mapstructure:"path"`
	// Obfuscated tables are decoded against a template before publishing.
	Obfuscated bool `mapstructure:"obfuscated"`
	// TextFields lists the canonical fields holding text-map hashes.
	TextFields []string `mapstructure:"text_fields"`
}

// LocalKey is the cache key of the raw table.
func (t Table) LocalKey() string {
	return "tables/" + t.Name + ".json"
}

// IsTextField reports whether a record field holds a text-map hash.
func (t Table) IsTextField(field string) bool {
	if len(t.TextFields) == 0 {
		return strings.HasSuffix(field, DefaultTextFieldSuffix)
	}
	for _, f := range t.TextFields {
		if f == field {
			return true
		}
	}
	return false
}

// Asset is a binary file served as-is after an integrity check.
type Asset struct {
	Name       string `mapstructure:"name"`
	RemotePath string `mapstructure:"path"`
}

// LocalKey is the cache key of the asset.
func (a Asset) LocalKey() string {
	return "assets/" + a.Name
}

// Consumer is a reader of decoded data that declares what it needs.
type Consumer struct {
	Name   string   `mapstructure:"name"`
	Tables []string `mapstructure:"tables"`
	Assets []string `mapstructure:"assets"`
}

// Manifest is the static dependency declaration.
type Manifest struct {
	TextMapPath string     `mapstructure:"text_map_path"`
	Tables      []Table    `mapstructure:"tables"`
	Assets      []Asset    `mapstructure:"assets"`
	Consumers   []Consumer `mapstructure:"consumers"`
}

// Load reads and validates the manifest file at path. The format follows the file
// extension (yaml, json, toml).
func Load(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, retry.New(retry.CategoryConfig, "read manifest", err).With("path", path)
	}
	return decode(v)
}

// Parse reads a manifest of the given format ("yaml", "json") from r.
func Parse(r io.Reader, format string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, retry.New(retry.CategoryConfig, "read manifest", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Manifest, error) {
	v.SetDefault("text_map_path", DefaultTextMapPath)

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, retry.New(retry.CategoryConfig, "decode manifest", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names, paths and consumer references.
func (m *Manifest) Validate() error {
	var errs []error

	tables := make(map[string]bool, len(m.Tables))
	for i, t := range m.Tables {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Errorf("table #%d has no name", i))
		case tables[t.Name]:
			errs = append(errs, fmt.Errorf("table %s is declared twice", t.Name))
		case t.RemotePath == "":
			errs = append(errs, fmt.Errorf("table %s has no path", t.Name))
		case strings.ContainsAny(t.Name, `/\`):
			errs = append(errs, fmt.Errorf("table name %s contains a path separator", t.Name))
		}
		tables[t.Name] = true
	}

	assets := make(map[string]bool, len(m.Assets))
	for i, a := range m.Assets {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("asset #%d has no name", i))
		case assets[a.Name]:
			errs = append(errs, fmt.Errorf("asset %s is declared twice", a.Name))
		case a.RemotePath == "":
			errs = append(errs, fmt.Errorf("asset %s has no path", a.Name))
		case path.Clean("/"+a.Name) != "/"+a.Name:
			errs = append(errs, fmt.Errorf("asset name %s is not a clean relative path", a.Name))
		}
		assets[a.Name] = true
	}

	consumers := make(map[string]bool, len(m.Consumers))
	for _, c := range m.Consumers {
		if c.Name == "" || consumers[c.Name] {
			errs = append(errs, fmt.Errorf("consumer %q is unnamed or declared twice", c.Name))
		}
		consumers[c.Name] = true
		for _, t := range c.Tables {
			if !tables[t] {
				errs = append(errs, fmt.Errorf("consumer %s requires unknown table %s", c.Name, t))
			}
		}
		for _, a := range c.Assets {
			if !assets[a] {
				errs = append(errs, fmt.Errorf("consumer %s requires unknown asset %s", c.Name, a))
			}
		}
	}

	if !strings.Contains(m.TextMapPath, "{lang}") {
		errs = append(errs, fmt.Errorf("text_map_path %q has no {lang} placeholder", m.TextMapPath))
	}

	if len(errs) > 0 {
		return retry.New(retry.CategoryConfig, "validate manifest", errors.Join(errs...))
	}
	return nil
}

// Table returns the declared table called name.
func (m *Manifest) Table(name string) (Table, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Asset returns the declared asset called name.
func (m *Manifest) Asset(name string) (Asset, bool) {
	for _, a := range m.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// TextMapFile returns the upstream path of a language's text map.
func (m *Manifest) TextMapFile(lang string) string {
	return strings.ReplaceAll(m.TextMapPath, "{lang}", lang)
}

// RequiredTables returns the minimal set of tables read by the named consumers, sorted
// by name. No names selects every consumer.
func (m *Manifest) RequiredTables(consumers []string) ([]Table, error) {
	selected, err := m.selectConsumers(consumers)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Table
	for _, c := range selected {
		for _, name := range c.Tables {
			if seen[name] {
				continue
			}
			seen[name] = true
			t, _ := m.Table(name)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RequiredAssets returns the assets read by the named consumers, sorted by name.
func (m *Manifest) RequiredAssets(consumers []string) ([]Asset, error) {
	selected, err := m.selectConsumers(consumers)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Asset
	for _, c := range selected {
		for _, name := range c.Assets {
			if seen[name] {
				continue
			}
			seen[name] = true
			a, _ := m.Asset(name)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Manifest) selectConsumers(names []string) ([]Consumer, error) {
	if len(names) == 0 {
		return m.Consumers, nil
	}
	out := make([]Consumer, 0, len(names))
	for _, name := range names {
		found := false
		for _, c := range m.Consumers {
			if c.Name == name {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, retry.New(retry.CategoryValidation, "resolve consumers", fmt.Errorf("unknown consumer %s", name))
		}
	}
	return out, nil
}
