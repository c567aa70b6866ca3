package common

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, ":5000", cfg.Server.HTTPAddr)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 4, cfg.Worker.Workers)
	assert.Equal(t, "professional", cfg.Watch.Style)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrefine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: file:docs.db
server:
  http_addr: ":7000"
llm:
  model: gpt-4o-mini
worker:
  workers: 2
  process_timeout: 45s
`), 0o644))

	t.Setenv("HTTP_ADDR", ":8000")
	t.Setenv("OPENAI_TEMPERATURE", "0.7")
	t.Setenv("GRPC_ADDR", "")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file:docs.db", cfg.Database.DSN)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "", cfg.Server.GRPCAddr, "an empty GRPC_ADDR disables the gRPC listener")
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 2, cfg.Worker.Workers)
	assert.Equal(t, 45*time.Second, cfg.Worker.ProcessTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, `unknown STORE_DRIVER "mongo"`},
		{"sqlite without dsn", func(c *Config) { c.Database.Driver = DriverSQLite }, "DB_URL is required"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "DB_URL is required"},
		{"empty http addr", func(c *Config) { c.Server.HTTPAddr = " " }, "HTTP_ADDR is required"},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "MAX_UPLOAD_BYTES must be at least 1"},
		{"negative max documents", func(c *Config) { c.Database.MaxDocuments = -1 }, "MAX_DOCUMENTS must be at least 0"},
		{"bad watch style", func(c *Config) { c.Watch.Dir = "/inbox"; c.Watch.Style = "formal" }, `WATCH_STYLE "formal" is not a writing style`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("watch style ignored without dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Watch.Style = "formal"
		assert.NoError(t, cfg.Validate())
	})
}

func TestHTTPStatusAndPublicMessage(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{NewAppError("NOT_FOUND", "Document not found", ErrNotFound), http.StatusNotFound, "Document not found"},
		{NewAppError("BAD", "Invalid writing style", ErrValidation), http.StatusBadRequest, "Invalid writing style"},
		{NewAppError("BIG", "File too large", ErrTooLarge), http.StatusRequestEntityTooLarge, "File too large"},
		{NewAppError("FULL", "Store full", ErrUnavailable), http.StatusServiceUnavailable, "Store full"},
		{ValidationError{Field: "name", Message: "name is required"}, http.StatusBadRequest, "name is required"},
		{WrapError(errors.New("disk on fire"), "spool upload"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err), tt.err.Error())
		assert.Equal(t, tt.wantMsg, PublicMessage(tt.err))
	}
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Nil(t, WrapError(nil, "noop"))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("name", "", Required).
		Field("count", 3, Min(5)).
		Field("kind", "b", OneOf("kind must be a", "a"))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.Equal(t, "name is required; count must be at least 5; kind must be a", v.ErrorMessage())

	single := NewValidator().Field("name", "ok", Required).Field("n", int64(1), Min(2))
	var verr ValidationError
	require.ErrorAs(t, single.Error(), &verr)
	assert.Equal(t, "n", verr.Field)

	assert.NoError(t, NewValidator().Field("name", "x", Required).Error())
}
