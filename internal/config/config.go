// Package config loads calibtrack settings from a YAML file and CALIBTRACK_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"calibtrack/internal/blob"
	"calibtrack/internal/core"
)

// EnvPrefix is prepended to every environment override, e.g. CALIBTRACK_STORAGE_DRIVER.
const EnvPrefix = "CALIBTRACK"

// DefaultFile is the config file written by SetStoreLocation when none was loaded.
const DefaultFile = "calibtrack.yaml"

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig selects and tunes the site repository.
type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	Autosave    bool          `mapstructure:"autosave"`
}

// BlobConfig selects the attachment store.
type BlobConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds the bucket settings. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

// JournalConfig bounds the undo history.
type JournalConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls operation metrics. When Textfile is set each
// invocation writes its Prometheus metrics there in text exposition format.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Settings wraps the viper instance a Config was read from so individual keys
// can be changed and written back.
type Settings struct {
	v    *viper.Viper
	file string
}

// Load reads configuration from file when it is non-empty, otherwise from
// calibtrack.yaml in the working directory or $HOME/.calibtrack if present.
// Environment variables override both.
func Load(file string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("calibtrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".calibtrack"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case file != "" && errors.Is(err, os.ErrNotExist):
			// an explicit file that does not exist yet is created on first write
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{v: v, file: v.ConfigFileUsed()}
	if s.file == "" {
		s.file = file
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "calibtrack.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.busy_timeout", "5s")
	v.SetDefault("storage.autosave", true)

	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "attachments")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.prefix", "")
	v.SetDefault("blob.s3.path_style", false)

	v.SetDefault("journal.capacity", core.DefaultJournalCapacity)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.textfile", "")
}

// Config decodes the current settings.
func (s *Settings) Config() (Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if cfg.Journal.Capacity < 1 {
		return Config{}, fmt.Errorf("journal.capacity must be positive, got %d", cfg.Journal.Capacity)
	}
	return cfg, nil
}

// File reports the config file Settings reads from and writes to.
func (s *Settings) File() string {
	if s.file == "" {
		return DefaultFile
	}
	return s.file
}

// StoreLocation returns the SQLite database path.
func (s *Settings) StoreLocation() string {
	return s.v.GetString("storage.sqlite_path")
}

// SetStoreLocation points the SQLite store at path and persists the change to
// the config file. The parent directory is created when missing.
func (s *Settings) SetStoreLocation(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("store location must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve store location: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return fmt.Errorf("store location %s is a directory", abs)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	s.v.Set("storage.sqlite_path", abs)
	if err := s.v.WriteConfigAs(s.File()); err != nil {
		return fmt.Errorf("write config %s: %w", s.File(), err)
	}
	return nil
}

// Repository converts the storage section for core.OpenRepository.
func (c Config) Repository() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(strings.ToLower(strings.TrimSpace(c.Storage.Driver))),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		LockWait:    c.Storage.BusyTimeout,
	}
}

// Attachments converts the blob section for blob.Open.
func (c Config) Attachments() blob.Config {
	return blob.Config{
		Driver: blob.Driver(strings.ToLower(strings.TrimSpace(c.Blob.Driver))),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			Prefix:    c.Blob.S3.Prefix,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}
