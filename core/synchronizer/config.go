package synchronizer

import "gamedata-sync/core/schema"

// Config holds the sync settings.
type Config struct {
	// Manifest is the path of the consumer manifest.
	Manifest string `mapstructure:"manifest" default:"manifest.yaml"`
	// Languages lists the text-map languages kept in the snapshot.
	Languages []string `mapstructure:"languages" default:"EN"`
	// Consumers limits a refresh to these consumers. Empty selects all of them.
	Consumers []string `mapstructure:"consumers" default:""`
	// Concurrency bounds parallel downloads.
	Concurrency int `mapstructure:"concurrency" default:"8"`
	// IntervalMinutes schedules periodic refreshes while serving. Zero disables them.
	IntervalMinutes int `mapstructure:"interval_minutes" default:"0"`
	// MaxPasses bounds how often a run repeats after the upstream moved under it.
	MaxPasses int `mapstructure:"max_passes" default:"3"`
	// Decode holds the decoder options applied to obfuscated tables.
	Decode schema.Options `mapstructure:"decode"`
}

func (c Config) concurrency() int {
	if c.Concurrency <= 0 {
		return 8
	}
	return c.Concurrency
}

func (c Config) maxPasses() int {
	if c.MaxPasses <= 0 {
		return 1
	}
	return c.MaxPasses
}
