package snapshot

import (
	"sort"
	"sync/atomic"
	"time"
)

// Snapshot is one immutable generation of decoded tables and filtered text entries.
// Nothing reachable from a published Snapshot is modified afterwards.
type Snapshot struct {
	Revision  string
	Timestamp string
	BuiltAt   time.Time
	// Tables maps a table name to its decoded document.
	Tables map[string]any
	// Confidence maps obfuscated table names to their decode confidence.
	Confidence map[string]float64
	// Texts maps a language to its filtered hash/text entries.
	Texts map[string]map[uint64]string
	// Assets maps asset names to whether they passed verification.
	Assets map[string]bool
}

// TableNames returns the sorted table names.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for n := range s.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Languages returns the sorted languages with text entries.
func (s *Snapshot) Languages() []string {
	langs := make([]string, 0, len(s.Texts))
	for l := range s.Texts {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Covers reports whether the snapshot holds every named table and language.
func (s *Snapshot) Covers(tables, languages []string) bool {
	for _, t := range tables {
		if _, ok := s.Tables[t]; !ok {
			return false
		}
	}
	for _, l := range languages {
		if _, ok := s.Texts[l]; !ok {
			return false
		}
	}
	return true
}

// HasAssets reports whether every named asset was handled by the sync that built s.
func (s *Snapshot) HasAssets(names []string) bool {
	for _, n := range names {
		if _, ok := s.Assets[n]; !ok {
			return false
		}
	}
	return true
}

// Lookup is the read contract offered to consumers of decoded data.
type Lookup interface {
	Table(name string) (any, bool)
	HasTable(name string) bool
	Text(lang string, hash uint64) (string, bool)
}

// Cache publishes snapshots. The zero value is empty and ready to use.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Publish makes s the current snapshot.
func (c *Cache) Publish(s *Snapshot) {
	c.current.Store(s)
}

// Current returns the current snapshot or nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Reset drops the current snapshot.
func (c *Cache) Reset() {
	c.current.Store(nil)
}

func (c *Cache) Table(name string) (any, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	t, ok := s.Tables[name]
	return t, ok
}

func (c *Cache) HasTable(name string) bool {
	_, ok := c.Table(name)
	return ok
}

func (c *Cache) Text(lang string, hash uint64) (string, bool) {
	s := c.current.Load()
	if s == nil {
		return "", false
	}
	text, ok := s.Texts[lang][hash]
	return text, ok
}
