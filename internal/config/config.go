package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv = "OMNISUM_CONFIG"
	DBTypeEnv     = "OMNISUM_DB"
	GoogleKeyEnv  = "GOOGLE_API_KEY"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Summarizer  SummarizerConfig          `json:"summarizer" yaml:"summarizer"`
	Gemini      GeminiConfig              `json:"gemini" yaml:"gemini"`
	Youtube     YoutubeConfig             `json:"youtube" yaml:"youtube"`
	Documents   DocumentConfig            `json:"documents" yaml:"documents"`
	Auth        AuthConfig                `json:"auth" yaml:"auth"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address" yaml:"server_address"`
	DatabaseType      string `json:"database_type" yaml:"database_type"`
	UploadDir         string `json:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes    int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	TempFileTTL       int    `json:"temp_file_ttl" yaml:"temp_file_ttl"`             // minutes
	TempCleanInterval int    `json:"temp_clean_interval" yaml:"temp_clean_interval"` // minutes
	RequestTimeout    int    `json:"request_timeout" yaml:"request_timeout"`         // seconds
	MinWorkers        int    `json:"min_workers" yaml:"min_workers"`
	MaxWorkers        int    `json:"max_workers" yaml:"max_workers"`
	QueueSize         int    `json:"queue_size" yaml:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout" yaml:"worker_idle_timeout"` // minutes
	LogLevel          string `json:"log_level" yaml:"log_level"`
	EmptyTextPolicy   string `json:"empty_text_policy" yaml:"empty_text_policy"`
}

// SummarizerConfig selects the eino provider used for text and document summaries.
type SummarizerConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

type GeminiConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	VideoModel string `json:"video_model" yaml:"video_model"`
	AudioModel string `json:"audio_model" yaml:"audio_model"`
}

type YoutubeConfig struct {
	Language string `json:"language" yaml:"language"`
	CacheTTL int    `json:"cache_ttl" yaml:"cache_ttl"` // minutes, 0 disables the cache
}

type DocumentConfig struct {
	PageMode string `json:"page_mode" yaml:"page_mode"`
}

type AuthConfig struct {
	AccessTokens []string `json:"access_tokens" yaml:"access_tokens"`
}

// Default returns a configuration usable without any file on disk.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:     ":8090",
			DatabaseType:      "sqlite3",
			UploadDir:         "./data/uploads",
			MaxUploadBytes:    25 << 20,
			TempFileTTL:       30,
			TempCleanInterval: 10,
			RequestTimeout:    300,
			MinWorkers:        1,
			MaxWorkers:        4,
			QueueSize:         32,
			WorkerIdleTimeout: 5,
			LogLevel:          "info",
			EmptyTextPolicy:   "pass",
		},
		Providers: map[string]ProviderConfig{},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "./data/omnisum.db"},
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
		Summarizer: SummarizerConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
		},
		Gemini: GeminiConfig{
			VideoModel: "gemini-2.5-flash",
			AudioModel: "gemini-2.5-pro",
		},
		Youtube:   YoutubeConfig{Language: "en", CacheTTL: 60},
		Documents: DocumentConfig{PageMode: "all"},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file yields the defaults; environment overrides are always applied.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	default:
		if err := decode(absPath, data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dbCfg, ok := cfg.Databases["sqlite3"]; ok && dbCfg.DSN != "" && dbCfg.DSN != ":memory:" && !filepath.IsAbs(dbCfg.DSN) {
		dbCfg.DSN = filepath.Join(filepath.Dir(absPath), dbCfg.DSN)
		cfg.Databases["sqlite3"] = dbCfg
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(GoogleKeyEnv)); key != "" {
		c.Gemini.APIKey = key
	}
	if dbType := strings.TrimSpace(os.Getenv(DBTypeEnv)); dbType != "" {
		c.BasicConfig.DatabaseType = dbType
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	for _, name := range []string{"openai", "claude", "gemini"} {
		key := strings.TrimSpace(os.Getenv(strings.ToUpper(name) + "_API_KEY"))
		if key == "" {
			continue
		}
		prov := c.Providers[name]
		prov.APIKey = key
		c.Providers[name] = prov
	}
}

func (c *Config) validate() error {
	switch c.BasicConfig.EmptyTextPolicy {
	case "", "pass", "skip":
	default:
		return fmt.Errorf("empty_text_policy must be pass or skip, got %q", c.BasicConfig.EmptyTextPolicy)
	}
	switch c.Documents.PageMode {
	case "", "all", "first_page":
	default:
		return fmt.Errorf("documents.page_mode must be all or first_page, got %q", c.Documents.PageMode)
	}
	if c.BasicConfig.MaxWorkers > 0 && c.BasicConfig.MinWorkers > c.BasicConfig.MaxWorkers {
		return fmt.Errorf("min_workers (%d) exceeds max_workers (%d)", c.BasicConfig.MinWorkers, c.BasicConfig.MaxWorkers)
	}
	return nil
}

// ProviderAPIKey returns the API key for an eino provider. Gemini falls back to
// the shared Google credential.
func (c *Config) ProviderAPIKey(provider string) string {
	if prov, ok := c.Providers[provider]; ok && prov.APIKey != "" {
		return prov.APIKey
	}
	if provider == "gemini" {
		return c.Gemini.APIKey
	}
	return ""
}
