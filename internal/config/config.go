package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"

	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// DefaultExamples are offered on the welcome screen before any conversation is selected.
var DefaultExamples = []string{
	"Explain quantum computing in simple terms",
	"Got any creative ideas for a 10 year old’s birthday?",
	"How do I make an HTTP request in Python?",
	"What is the capital of France?",
}

// Config represents runtime configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Log      LogConfig      `mapstructure:"log"`
	Examples []string       `mapstructure:"examples"`
}

type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	SessionIdleTTL    time.Duration `mapstructure:"session_idle_ttl"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
	SecureCookies     bool          `mapstructure:"secure_cookies"`
}

// ProviderConfig selects the completion backend. Model and APIKey are separate values;
// the key is never used as a model name.
type ProviderConfig struct {
	Name        string  `mapstructure:"name"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

// SetDefaults registers every known key so env overrides resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8090")
	v.SetDefault("server.session_idle_ttl", 30*time.Minute)
	v.SetDefault("server.completion_timeout", 2*time.Minute)
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("provider.name", ProviderOpenAI)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", DefaultModel)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.max_tokens", 3000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.with_caller", false)
	v.SetDefault("examples", DefaultExamples)
}

// NewViper builds a viper instance reading path (or the default search locations when
// path is empty) and CHATCLONE_* environment variables. GROQ_API_KEY also supplies the
// credential.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("chatclone")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.api_key", "CHATCLONE_PROVIDER_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, errors.Wrap(err, "bind api key env")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chatclone")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.chatclone")
		v.AddConfigPath("/etc/chatclone")
		if xdg, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(xdg + "/chatclone")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load reads configuration from the provided path (or the default locations).
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	c.Provider.Model = strings.TrimSpace(c.Provider.Model)
	if c.Provider.Name == ProviderOpenAI && c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	examples := make([]string, 0, len(c.Examples))
	for _, ex := range c.Examples {
		if ex = strings.TrimSpace(ex); ex != "" {
			examples = append(examples, ex)
		}
	}
	c.Examples = examples
}

// Validate fails fast on settings the completion client cannot work without.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
	default:
		return &ConfigurationError{Key: "provider.name", Reason: fmt.Sprintf("unknown provider %q", c.Provider.Name)}
	}
	if c.Provider.APIKey == "" {
		return &ConfigurationError{Key: "provider.api_key", Reason: "is required (set GROQ_API_KEY or CHATCLONE_PROVIDER_API_KEY)"}
	}
	if c.Provider.Model == "" {
		return &ConfigurationError{Key: "provider.model", Reason: "is required"}
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return &ConfigurationError{Key: "provider.temperature", Reason: "must be between 0 and 2"}
	}
	if c.Server.SessionIdleTTL <= 0 {
		return &ConfigurationError{Key: "server.session_idle_ttl", Reason: "must be positive"}
	}
	if c.Server.CompletionTimeout <= 0 {
		return &ConfigurationError{Key: "server.completion_timeout", Reason: "must be positive"}
	}
	return nil
}
