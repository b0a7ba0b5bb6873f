package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/leadstream/internal/ingestion"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "leadstream", cfg.Database.DBName)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, ingestion.DefaultAcceptedMimeTypes, cfg.Upload.AcceptedMimeTypes)
	assert.EqualValues(t, 10<<20, cfg.Upload.MaxSizeBytes())
	assert.Equal(t, 4, cfg.Enrichment.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Enrichment.StaleAfter)
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  driver: memory
  port: 6543
server:
  addr: ":9090"
  read_timeout: 5s
upload:
  duplicate_policy: warn
enrichment:
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("LEADSTREAM_ENRICHMENT_WORKERS", "8")
	t.Setenv("LEADSTREAM_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 6543, cfg.Database.DB().Port)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "warn", cfg.Upload.DuplicatePolicy)
	assert.Equal(t, 8, cfg.Enrichment.Workers)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  driver: mysql
storage:
  driver: ftp
upload:
  duplicate_policy: merge
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "upload.duplicate_policy")
}
