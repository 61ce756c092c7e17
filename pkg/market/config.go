package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"feishu-assistant/pkg/confkit"
)

const defaultProviderTimeout = 10 * time.Second

// Config describes the market data providers and which provider serves each
// role.
type Config struct {
	Quote string `yaml:"quote"`
	// QuoteFallback, when set, serves quotes the primary provider fails on.
	QuoteFallback string                     `yaml:"quote_fallback"`
	Index         string                     `yaml:"index"`
	Fundamentals  string                     `yaml:"fundamentals"`
	Providers     map[string]*ProviderConfig `yaml:"providers"`
	// Symbols extends the built-in name -> code table.
	Symbols map[string]string `yaml:"symbols"`
}

// ProviderConfig represents configuration for a single market provider.
type ProviderConfig struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`
	// RateLimit caps requests per minute; 0 disables client side limiting.
	RateLimit int `yaml:"rate_limit"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a market provider constructor.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[normaliseType(typeName)] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[normaliseType(typeName)]
	return builder, ok
}

func normaliseType(typeName string) string {
	return strings.ToLower(strings.TrimSpace(typeName))
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	c.Quote = strings.TrimSpace(c.Quote)
	c.QuoteFallback = strings.TrimSpace(c.QuoteFallback)
	c.Index = strings.TrimSpace(c.Index)
	c.Fundamentals = strings.TrimSpace(c.Fundamentals)
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.Type = confkit.Expand(provider.Type)
		provider.BaseURL = confkit.Expand(provider.BaseURL)
		provider.APIKey = confkit.Expand(provider.APIKey)
		d, err := confkit.ParseDuration("market provider "+name+": timeout", provider.TimeoutRaw, defaultProviderTimeout)
		if err != nil {
			return err
		}
		provider.Timeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("market config: providers cannot be empty")
	}
	roles := map[string]string{"quote": c.Quote, "index": c.Index}
	for role, name := range roles {
		if name == "" {
			return fmt.Errorf("market config: %s provider is required", role)
		}
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("market config: %s provider %q not defined", role, name)
		}
	}
	optional := map[string]string{"fundamentals": c.Fundamentals, "quote_fallback": c.QuoteFallback}
	for role, name := range optional {
		if name == "" {
			continue
		}
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("market config: %s provider %q not defined", role, name)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("market config: provider name cannot be empty")
		}
		if strings.TrimSpace(provider.Type) == "" {
			return fmt.Errorf("market config: provider %s must specify type", name)
		}
		if _, ok := lookupProviderBuilder(provider.Type); !ok {
			return fmt.Errorf("market config: provider %s has unsupported type %q", name, provider.Type)
		}
		if provider.MaxRetries < 0 || provider.RateLimit < 0 {
			return fmt.Errorf("market config: provider %s has negative limits", name)
		}
	}
	return nil
}

// BuildProviders instantiates every configured provider.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: unsupported type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// Sources binds the configured providers to their roles. Fundamentals is nil
// when no fundamentals provider is configured.
type Sources struct {
	Quotes       QuoteSource
	Indexes      IndexSource
	Fundamentals FundamentalsSource
	Symbols      *SymbolTable
}

// Build instantiates the providers and checks each role is served by a
// provider implementing it.
func (c *Config) Build() (*Sources, error) {
	providers, err := c.BuildProviders()
	if err != nil {
		return nil, err
	}
	src := &Sources{Symbols: NewSymbolTable(c.Symbols)}

	var ok bool
	if src.Quotes, ok = providers[c.Quote].(QuoteSource); !ok {
		return nil, fmt.Errorf("market config: provider %q cannot serve quotes", c.Quote)
	}
	if c.QuoteFallback != "" && c.QuoteFallback != c.Quote {
		fallback, ok := providers[c.QuoteFallback].(QuoteSource)
		if !ok {
			return nil, fmt.Errorf("market config: provider %q cannot serve quotes", c.QuoteFallback)
		}
		src.Quotes = FallbackQuotes(src.Quotes, fallback)
	}
	if src.Indexes, ok = providers[c.Index].(IndexSource); !ok {
		return nil, fmt.Errorf("market config: provider %q cannot serve indexes", c.Index)
	}
	if c.Fundamentals != "" {
		if src.Fundamentals, ok = providers[c.Fundamentals].(FundamentalsSource); !ok {
			return nil, fmt.Errorf("market config: provider %q cannot serve fundamentals", c.Fundamentals)
		}
	}
	return src, nil
}
