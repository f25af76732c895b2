package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWTSECRET", "s3cret")
	t.Setenv("STUDY_SESSIONWINDOW", "45m")
	t.Setenv("STORE_DRIVER", " Redis ")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 45*time.Minute, cfg.Study.SessionWindow)
	assert.Equal(t, 3, cfg.Study.MaxWriteAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Study.BaseBackoff)
	assert.Equal(t, "profiles", cfg.MongoDB.Collection)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedHosts, "origins carry the scheme")
}

func TestLoad_LegacyCosmosVariables(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_TRUSTPRINCIPALHEADERS", "true")
	t.Setenv("AZURE_COSMOSDB_DATABASE", "db_conversation_history")
	t.Setenv("AZURE_COSMOSDB_CONVERSATIONS_CONTAINER", "conversations")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "db_conversation_history", cfg.MongoDB.Database)
	assert.Equal(t, "conversations", cfg.MongoDB.Collection)

	t.Setenv("MONGODB_DATABASE", "study_v2")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "study_v2", cfg.MongoDB.Database, "new name takes precedence")
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "study.yaml", `
store:
  driver: memory
auth:
  jwtsecret: from-file
debug:
  enabled: true
study:
  sessionwindow: 10m
  maxwriteattempts: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Study.SessionWindow)
	assert.Equal(t, 5, cfg.Study.MaxWriteAttempts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "4000"},
			Store:  StoreConfig{Driver: DriverMemory},
			Auth:   AuthConfig{JWTSecret: "x"},
			Study:  StudyConfig{SessionWindow: time.Minute, MaxWriteAttempts: 1},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "cosmos" }},
		{"mongo without uri", func(c *Config) { c.Store.Driver = DriverMongoDB; c.MongoDB.Database = "d"; c.MongoDB.Collection = "c" }},
		{"redis without addr", func(c *Config) { c.Store.Driver = DriverRedis }},
		{"zero window", func(c *Config) { c.Study.SessionWindow = 0 }},
		{"zero attempts", func(c *Config) { c.Study.MaxWriteAttempts = 0 }},
		{"no identity", func(c *Config) { c.Auth.JWTSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "STUDY_TEST_DOTENV=loaded\n")
	t.Setenv("STUDY_TEST_DOTENV", "")
	os.Unsetenv("STUDY_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", GetEnv("STUDY_TEST_DOTENV", "default"))
	assert.Equal(t, "default", GetEnv("STUDY_TEST_UNSET", "default"))
}
