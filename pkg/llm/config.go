package llm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"feishu-assistant/pkg/confkit"
)

const (
	defaultBaseURL        = "https://api.moonshot.cn/v1"
	defaultModel          = "moonshot-v1-8k"
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 2
	defaultLogLevel       = "info"
	defaultStructuredMode = StructuredJSONObject

	envAPIKey     = "LLM_API_KEY"
	envBaseURL    = "LLM_BASE_URL"
	envModel      = "LLM_MODEL"
	envTimeout    = "LLM_TIMEOUT"
	envMaxRetries = "LLM_MAX_RETRIES"
)

// Structured output modes. Not every OpenAI-compatible provider accepts
// json_schema, json_object is the portable choice.
const (
	StructuredJSONObject = "json_object"
	StructuredJSONSchema = "json_schema"
)

// Config holds runtime settings for the LLM client.
type Config struct {
	BaseURL        string                 `yaml:"base_url"`
	APIKey         string                 `yaml:"api_key"`
	DefaultModel   string                 `yaml:"default_model"`
	Timeout        time.Duration          `yaml:"-"`
	MaxRetries     int                    `yaml:"max_retries"`
	LogLevel       string                 `yaml:"log_level"`
	StructuredMode string                 `yaml:"structured_mode"`
	Models         map[string]ModelConfig `yaml:"models"`

	timeoutRaw string
}

// ModelConfig defines defaults for a particular model alias.
type ModelConfig struct {
	ModelName   string   `yaml:"model_name"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open llm config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var raw struct {
		BaseURL        string                 `yaml:"base_url"`
		APIKey         string                 `yaml:"api_key"`
		DefaultModel   string                 `yaml:"default_model"`
		Timeout        string                 `yaml:"timeout"`
		MaxRetries     *int                   `yaml:"max_retries"`
		LogLevel       string                 `yaml:"log_level"`
		StructuredMode string                 `yaml:"structured_mode"`
		Models         map[string]ModelConfig `yaml:"models"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read llm config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal llm config: %w", err)
	}

	cfg := &Config{
		BaseURL:        raw.BaseURL,
		APIKey:         raw.APIKey,
		DefaultModel:   raw.DefaultModel,
		MaxRetries:     defaultMaxRetries,
		LogLevel:       raw.LogLevel,
		StructuredMode: raw.StructuredMode,
		Models:         raw.Models,
		timeoutRaw:     raw.Timeout,
	}
	if raw.MaxRetries != nil {
		cfg.MaxRetries = *raw.MaxRetries
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if cfg.Timeout, err = confkit.ParseDuration("llm config: timeout", cfg.timeoutRaw, defaultTimeout); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the LLM_* environment variables alone. Used
// when no llm section is configured.
func FromEnv() (*Config, error) {
	return LoadConfigFromReader(strings.NewReader("{}"))
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("llm config: api_key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("llm config: base_url is required")
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		return errors.New("llm config: default_model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("llm config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("llm config: max_retries cannot be negative")
	}
	switch c.StructuredMode {
	case StructuredJSONObject, StructuredJSONSchema:
	default:
		return fmt.Errorf("llm config: unsupported structured_mode %q", c.StructuredMode)
	}
	return nil
}

// Model returns the configuration for the given model alias.
func (c *Config) Model(name string) (ModelConfig, bool) {
	if c.Models == nil {
		return ModelConfig{}, false
	}
	modelCfg, ok := c.Models[name]
	return modelCfg, ok
}

// ResolveModel maps an alias onto the upstream model name. Unknown aliases
// are sent as-is.
func (c *Config) ResolveModel(alias string) (string, ModelConfig) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		alias = c.DefaultModel
	}
	modelCfg, ok := c.Model(alias)
	if !ok || strings.TrimSpace(modelCfg.ModelName) == "" {
		modelCfg.ModelName = alias
	}
	return modelCfg.ModelName, modelCfg
}

// Clone returns a shallow copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Models != nil {
		cp.Models = make(map[string]ModelConfig, len(c.Models))
		for k, v := range c.Models {
			cp.Models[k] = v
		}
	}
	return &cp
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		c.DefaultModel = defaultModel
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	c.StructuredMode = strings.ToLower(strings.TrimSpace(c.StructuredMode))
	if c.StructuredMode == "" {
		c.StructuredMode = defaultStructuredMode
	}
}

func (c *Config) applyEnvOverrides() error {
	c.BaseURL = confkit.Override(c.BaseURL, envBaseURL)
	c.APIKey = confkit.Override(c.APIKey, envAPIKey)
	c.DefaultModel = confkit.Override(c.DefaultModel, envModel)
	c.timeoutRaw = confkit.Override(c.timeoutRaw, envTimeout)

	if raw := strings.TrimSpace(os.Getenv(envMaxRetries)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("llm config: invalid %s %q: %w", envMaxRetries, raw, err)
		}
		c.MaxRetries = v
	}
	return nil
}
