package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. REGNEX_MODEL_NAME.
const EnvPrefix = "REGNEX"

// APIKeyEnv is the environment variable carrying the model API credential.
const APIKeyEnv = "GOOGLE_API_KEY"

// Config contains all configuration for the agent team
type Config struct {
	Model         ModelConfig         `json:"model" mapstructure:"model" validate:"required"`
	Data          DataConfig          `json:"data" mapstructure:"data" validate:"required"`
	Agents        AgentsConfig        `json:"agents" mapstructure:"agents" validate:"required"`
	Server        ServerConfig        `json:"server" mapstructure:"server" validate:"required"`
	Logging       LoggingConfig       `json:"logging" mapstructure:"logging" validate:"required"`
	RateLimit     RateLimitConfig     `json:"rate_limit" mapstructure:"rate_limit"`
	Cache         CacheConfig         `json:"cache" mapstructure:"cache"`
	Conversations ConversationsConfig `json:"conversations" mapstructure:"conversations"`
}

// ModelConfig configures the hosted chat model
type ModelConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider" validate:"required,oneof=openai"`
	Name           string  `json:"name" mapstructure:"name" validate:"required"`
	BaseURL        string  `json:"base_url" mapstructure:"base_url" validate:"required,url"`
	APIKey         string  `json:"api_key,omitempty" mapstructure:"api_key"`
	Temperature    float32 `json:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens" validate:"min=0,max=1000000"`
	TimeoutSeconds int     `json:"timeout_seconds" mapstructure:"timeout_seconds" validate:"min=1,max=3600"`
	MaxRetries     int     `json:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`
}

// DataConfig points the knowledge bases at their folders
type DataConfig struct {
	FinanceDir     string `json:"finance_dir" mapstructure:"finance_dir" validate:"required"`
	CSVDir         string `json:"csv_dir" mapstructure:"csv_dir" validate:"required"`
	ChunkSize      int    `json:"chunk_size" mapstructure:"chunk_size" validate:"min=100,max=50000"`
	ChunkOverlap   int    `json:"chunk_overlap" mapstructure:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"`
	MaxConcurrency int    `json:"max_concurrency" mapstructure:"max_concurrency" validate:"min=1,max=64"`
}

// AgentsConfig tunes the agent runtime
type AgentsConfig struct {
	MaxTurns    int  `json:"max_turns" mapstructure:"max_turns" validate:"min=1,max=50"`
	Markdown    bool `json:"markdown" mapstructure:"markdown"`
	SearchLimit int  `json:"search_limit" mapstructure:"search_limit" validate:"min=1,max=50"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host                   string   `json:"host" mapstructure:"host"`
	Port                   int      `json:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeoutSeconds     int      `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds" validate:"min=1"`
	WriteTimeoutSeconds    int      `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds" validate:"min=1"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds" validate:"min=1"`
	CORSOrigins            []string `json:"cors_origins" mapstructure:"cors_origins"`
}

// LoggingConfig configures zerolog output
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `json:"format" mapstructure:"format" validate:"required,oneof=console json"`
}

// RateLimitConfig bounds calls to the model API
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `json:"burst" mapstructure:"burst" validate:"min=1"`
}

// CacheConfig enables the redis answer cache
type CacheConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Addr       string `json:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
	Password   string `json:"password,omitempty" mapstructure:"password"`
	DB         int    `json:"db" mapstructure:"db" validate:"min=0,max=15"`
	TTLSeconds int    `json:"ttl_seconds" mapstructure:"ttl_seconds" validate:"min=1"`
}

// ConversationsConfig selects the chat history store
type ConversationsConfig struct {
	Store         string `json:"store" mapstructure:"store" validate:"required,oneof=memory sqlite"`
	DSN           string `json:"dsn" mapstructure:"dsn"`
	ContextWindow int    `json:"context_window" mapstructure:"context_window" validate:"min=1,max=1000"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:       "openai",
			Name:           "gemini-2.5-pro",
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai",
			Temperature:    0.2,
			TimeoutSeconds: 300,
			MaxRetries:     3,
		},
		Data: DataConfig{
			FinanceDir:     "financeAgent/data",
			CSVDir:         "csvAgent/data",
			ChunkSize:      2000,
			ChunkOverlap:   200,
			MaxConcurrency: 4,
		},
		Agents: AgentsConfig{
			MaxTurns:    10,
			Markdown:    true,
			SearchLimit: 5,
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   7860,
			ReadTimeoutSeconds:     30,
			WriteTimeoutSeconds:    600,
			ShutdownTimeoutSeconds: 30,
			CORSOrigins:            []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			TTLSeconds: 3600,
		},
		Conversations: ConversationsConfig{
			Store:         "memory",
			DSN:           "file::memory:?cache=shared",
			ContextWindow: 50,
		},
	}
}

// LoadDotEnv loads the first .env files it finds. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env", "../../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load builds the configuration from defaults, an optional file and the
// environment. .env files are loaded first so GOOGLE_API_KEY can live there.
func Load(path string) (*Config, error) {
	LoadDotEnv()

	v := viper.New()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("model.api_key", EnvPrefix+"_MODEL_API_KEY", APIKeyEnv); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every default key with viper so env overrides
// are visible to Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	flatten("", tree, func(key string, value any) { v.SetDefault(key, value) })
	// api_key is omitempty and would otherwise be unknown to viper
	v.SetDefault("model.api_key", "")
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(key, nested, set)
			continue
		}
		set(key, val)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// HasAPIKey reports whether a model credential is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Model.APIKey) != ""
}

// SaveToFile saves the configuration to a file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// String returns a string representation of the config (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c

	if configCopy.Model.APIKey != "" {
		configCopy.Model.APIKey = strings.Repeat("*", len(configCopy.Model.APIKey))
	}
	if configCopy.Cache.Password != "" {
		configCopy.Cache.Password = strings.Repeat("*", len(configCopy.Cache.Password))
	}

	data, _ := json.MarshalIndent(configCopy, "", "  ")
	return string(data)
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
