package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.05, cfg.Geometry.MarginFraction)
	assert.Equal(t, 224, cfg.Cropper.MinFeetSide)
	assert.Equal(t, 95, cfg.Output.JPEGQuality)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"margin above one", func(c *Config) { c.Geometry.MarginFraction = 1.5 }},
		{"negative margin", func(c *Config) { c.Geometry.MarginFraction = -0.1 }},
		{"unknown backend", func(c *Config) { c.Vision.Backend = "openai" }},
		{"zero top k", func(c *Config) { c.Compat.DefaultTopK = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad quality", func(c *Config) { c.Output.JPEGQuality = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Geometry.MarginFraction = 0.1
	cfg.Vision.Backend = "llamacpp"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, loaded.Geometry.MarginFraction)
	assert.Equal(t, "llamacpp", loaded.Vision.Backend)
	assert.Equal(t, cfg.Server.Port, loaded.Server.Port)
}

func TestLoadLayersEnvironmentOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("geometry:\n  margin_fraction: 0.2\nserver:\n  port: 9000\n"), 0o644))

	t.Setenv("FASHION_SERVER_PORT", "9100")
	t.Setenv("FASHION_SERVER_CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Geometry.MarginFraction)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("geometry:\n  margin_fraction: 3\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "geometry.margin_fraction", envTransform("FASHION_GEOMETRY_MARGIN_FRACTION"))
	assert.Equal(t, "vision.model", envTransform("FASHION_VISION_MODEL"))
	assert.Equal(t, "", envTransform("FASHION_CONFIG_PATH"))
}
