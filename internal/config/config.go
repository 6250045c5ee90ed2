package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. FASHION_VISION_MODEL.
const EnvPrefix = "FASHION_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "FASHION_CONFIG_PATH"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Vision    VisionConfig    `koanf:"vision"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Geometry  GeometryConfig  `koanf:"geometry"`
	Cropper   CropperConfig   `koanf:"cropper"`
	Compat    CompatConfig    `koanf:"compat"`
	Output    OutputConfig    `koanf:"output"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host                   string   `koanf:"host"`
	Port                   int      `koanf:"port"`
	CORSOrigins            []string `koanf:"cors_origins"`
	RateLimitPerMinute     int      `koanf:"rate_limit_per_minute"`
	ShutdownTimeoutSeconds int      `koanf:"shutdown_timeout_seconds"`
	MaxUploadMB            int      `koanf:"max_upload_mb"`
}

// VisionConfig selects the chat-with-image backend used for pose, people and crop descriptions
type VisionConfig struct {
	Backend     string `koanf:"backend"`
	URL         string `koanf:"url"`
	Model       string `koanf:"model"`
	SendFormat  string `koanf:"send_format"`
	SendSize    int    `koanf:"send_size"`
	SendQuality int    `koanf:"send_quality"`
}

// EmbeddingConfig selects the text embedding backend and its on-disk cache
type EmbeddingConfig struct {
	Backend  string `koanf:"backend"`
	URL      string `koanf:"url"`
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// GeometryConfig holds region derivation settings
type GeometryConfig struct {
	MarginFraction float64 `koanf:"margin_fraction"`
}

// CropperConfig holds region crop settings
type CropperConfig struct {
	MinFeetSide int `koanf:"min_feet_side"`
}

// CompatConfig holds compatibility engine settings
type CompatConfig struct {
	DefaultTopK int  `koanf:"default_top_k"`
	InitOnStart bool `koanf:"init_on_start"`
}

// OutputConfig holds configuration for saved crops and overlays
type OutputConfig struct {
	StaticDir    string `koanf:"static_dir"`
	JPEGQuality  int    `koanf:"jpeg_quality"`
	DebugOverlay bool   `koanf:"debug_overlay"`
	DebugFormat  string `koanf:"debug_format"`
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8000,
			CORSOrigins:            []string{"*"},
			RateLimitPerMinute:     120,
			ShutdownTimeoutSeconds: 15,
			MaxUploadMB:            20,
		},
		Vision: VisionConfig{
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendSize:    1024,
			SendQuality: 85,
		},
		Embedding: EmbeddingConfig{
			Backend: "ollama",
			URL:     "http://localhost:11434",
			Model:   "nomic-embed-text",
		},
		Geometry: GeometryConfig{
			MarginFraction: 0.05,
		},
		Cropper: CropperConfig{
			MinFeetSide: 224,
		},
		Compat: CompatConfig{
			DefaultTopK: 5,
			InitOnStart: true,
		},
		Output: OutputConfig{
			StaticDir:   "static/body_parts",
			JPEGQuality: 95,
			DebugFormat: "png",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// FASHION_* environment variables, in increasing priority. A .env file in
// the working directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitListValues(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults,
// without consulting the environment.
func LoadFromFile(filename string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch c.Vision.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.backend must be ollama or llamacpp, got %q", c.Vision.Backend)
	}
	switch c.Embedding.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("embedding.backend must be ollama or llamacpp, got %q", c.Embedding.Backend)
	}
	if c.Vision.Model == "" || c.Embedding.Model == "" {
		return fmt.Errorf("vision.model and embedding.model are required")
	}
	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	if c.Geometry.MarginFraction < 0 || c.Geometry.MarginFraction > 1 {
		return fmt.Errorf("geometry.margin_fraction must be between 0 and 1")
	}
	if c.Cropper.MinFeetSide < 0 {
		return fmt.Errorf("cropper.min_feet_side cannot be negative")
	}
	if c.Compat.DefaultTopK < 1 {
		return fmt.Errorf("compat.default_top_k must be positive")
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}
	if c.Output.StaticDir == "" {
		return fmt.Errorf("output.static_dir cannot be empty")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "fashion-extractor", "config.yaml")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"config.yaml", "config.yml", GetConfigPath()} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FASHION_GEOMETRY_MARGIN_FRACTION -> geometry.margin_fraction
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config_path" {
		return ""
	}
	return strings.Replace(key, "_", ".", 1)
}

// splitListValues turns comma-separated env values into slices.
func splitListValues(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}
