package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"calibtrack/internal/blob"
	"calibtrack/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	cfg, err := s.Config()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, "calibtrack.db", cfg.Storage.SQLitePath)
	require.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)
	require.True(t, cfg.Storage.Autosave)
	require.Equal(t, "fs", cfg.Blob.Driver)
	require.Equal(t, core.DefaultJournalCapacity, cfg.Journal.Capacity)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, DefaultFile, s.File())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "calibtrack.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/calib
  busy_timeout: 2s
blob:
  driver: s3
  s3:
    bucket: reports
    endpoint: http://minio:9000
    path_style: true
journal:
  capacity: 25
logging:
  level: debug
  format: json
`), 0o600))
	t.Setenv("CALIBTRACK_LOGGING_LEVEL", "warn")

	s, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, file, s.File())
	cfg, err := s.Config()
	require.NoError(t, err)

	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, 25, cfg.Journal.Capacity)

	repo := cfg.Repository()
	require.Equal(t, core.StoragePostgres, repo.Driver)
	require.Equal(t, "postgres://localhost/calib", repo.PostgresDSN)
	require.Equal(t, 2*time.Second, repo.LockWait)

	att := cfg.Attachments()
	require.Equal(t, blob.DriverS3, att.Driver)
	require.Equal(t, "reports", att.S3.Bucket)
	require.Equal(t, "http://minio:9000", att.S3.Endpoint)
	require.True(t, att.S3.PathStyle)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "calibtrack.yaml")
	require.NoError(t, os.WriteFile(file, []byte("storage: [unterminated"), 0o600))
	_, err := Load(file)
	require.Error(t, err)
}

func TestConfigRejectsZeroJournalCapacity(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CALIBTRACK_JOURNAL_CAPACITY", "0")
	s, err := Load("")
	require.NoError(t, err)
	_, err = s.Config()
	require.ErrorContains(t, err, "journal.capacity")
}

func TestSetStoreLocationPersists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "calibtrack.yaml")
	s, err := Load(file)
	require.NoError(t, err)

	target := filepath.Join(dir, "data", "sites.db")
	require.NoError(t, s.SetStoreLocation(target))
	require.Equal(t, target, s.StoreLocation())
	require.DirExists(t, filepath.Join(dir, "data"))

	reloaded, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, target, reloaded.StoreLocation())
}

func TestSetStoreLocationRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "calibtrack.yaml"))
	require.NoError(t, err)

	require.Error(t, s.SetStoreLocation("  "))
	require.ErrorContains(t, s.SetStoreLocation(dir), "directory")
	require.Equal(t, "calibtrack.db", s.StoreLocation())
}
