package persist

// Config selects the backend of the cache and template stores.
type Config struct {
	// Backend is either "disk" or "s3".
	Backend string `mapstructure:"backend" default:"disk"`
	// Dir is the cache root for the disk backend, or the key prefix for s3.
	Dir string `mapstructure:"dir" default:"data/cache"`
	// TemplateDir is the template root for the disk backend, or the key prefix for s3.
	TemplateDir string `mapstructure:"template_dir" default:"data/templates"`
}

const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)
