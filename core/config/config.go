package config

import (
	"reflect"
	"strings"

	"gamedata-sync/core/database"
	"gamedata-sync/core/logger"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/server"
	"gamedata-sync/core/storage"
	"gamedata-sync/core/synchronizer"
	"gamedata-sync/core/upstream"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application, one section per concern.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Storage holds the S3/MinIO connection used by the s3 cache backend.
	Storage storage.Config `mapstructure:"storage"`
	// Database holds the optional MySQL connection backing the sync history.
	Database database.Config `mapstructure:"database"`
	// Upstream holds the remote repository endpoints.
	Upstream upstream.Config `mapstructure:"upstream"`
	// Cache selects where tables, text maps, assets and templates live.
	Cache persist.Config `mapstructure:"cache"`
	// Sync holds the synchronizer and decoder settings.
	Sync synchronizer.Config `mapstructure:"sync"`
}

// LoadConfig loads configuration from environment variables and an optional .env file
// in path.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// a missing .env is normal in production
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// SYNC_MAX_PASSES -> sync.max_passes
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues walks the struct and registers every mapstructure key with its
// 'default' tag, recursing into nested sections.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// registered even when empty so AutomaticEnv can see the key
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
