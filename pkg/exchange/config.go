package exchange

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Default polling and trading tunables, applied when the configuration
// leaves them unset.
const (
	DefaultMarketPollInterval  = 2 * time.Second
	DefaultPrivatePollInterval = 5 * time.Second
	DefaultSlippageBps         = 50
)

// Config captures configuration for one or more futures exchanges.
type Config struct {
	Default   string                     `yaml:"default"`
	Exchanges map[string]*ExchangeConfig `yaml:"exchanges"`
}

// ExchangeConfig describes how to construct a specific exchange instance.
// Values support ${ENV} expansion so credentials stay out of config files.
type ExchangeConfig struct {
	Type      string `yaml:"type"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Testnet   bool   `yaml:"testnet"`

	TimeoutRaw          string        `yaml:"timeout"`
	Timeout             time.Duration `yaml:"-"`
	MarketPollRaw       string        `yaml:"market_poll_interval"`
	MarketPollInterval  time.Duration `yaml:"-"`
	PrivatePollRaw      string        `yaml:"private_poll_interval"`
	PrivatePollInterval time.Duration `yaml:"-"`
	ContractTTLRaw      string        `yaml:"contract_cache_ttl"`
	ContractTTL         time.Duration `yaml:"-"`

	// SlippageBps is the marketable-limit price allowance, in basis
	// points, used when emulating market orders.
	SlippageBps int `yaml:"slippage_bps"`
}

// Builder constructs a FuturesExchange from configuration.
type Builder func(name string, cfg *ExchangeConfig) (FuturesExchange, error)

var (
	builderRegistry   = make(map[string]Builder)
	builderRegistryMu sync.RWMutex
)

// RegisterExchange associates a builder with an exchange type.
func RegisterExchange(typeName string, builder Builder) {
	builderRegistryMu.Lock()
	defer builderRegistryMu.Unlock()
	builderRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupBuilder(typeName string) (Builder, bool) {
	builderRegistryMu.RLock()
	defer builderRegistryMu.RUnlock()
	builder, ok := builderRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// Build constructs a single exchange instance for the given type. This is a
// convenience for tests and callers that do not hold a full config map.
func Build(typeName string, cfg *ExchangeConfig) (FuturesExchange, error) {
	if cfg == nil {
		cfg = &ExchangeConfig{}
	}
	cfgCopy := *cfg
	cfgCopy.Type = typeName
	if err := cfgCopy.normalise("inline"); err != nil {
		return nil, err
	}
	if err := cfgCopy.validate("inline"); err != nil {
		return nil, err
	}
	builder, ok := lookupBuilder(cfgCopy.Type)
	if !ok {
		return nil, fmt.Errorf("exchange: unsupported type %q", cfgCopy.Type)
	}
	return builder("inline", &cfgCopy)
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read exchange config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal exchange config: %w", err)
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
	if c.Exchanges == nil {
		c.Exchanges = make(map[string]*ExchangeConfig)
	}
	for name, ex := range c.Exchanges {
		if ex == nil {
			ex = &ExchangeConfig{}
			c.Exchanges[name] = ex
		}
		if err := ex.normalise(name); err != nil {
			return err
		}
	}
	return nil
}

func (e *ExchangeConfig) normalise(name string) error {
	e.expandEnv()
	if err := e.parseDurations(name); err != nil {
		return err
	}
	if e.MarketPollInterval <= 0 {
		e.MarketPollInterval = DefaultMarketPollInterval
	}
	if e.PrivatePollInterval <= 0 {
		e.PrivatePollInterval = DefaultPrivatePollInterval
	}
	if e.SlippageBps <= 0 {
		e.SlippageBps = DefaultSlippageBps
	}
	return nil
}

func (e *ExchangeConfig) expandEnv() {
	e.Type = strings.TrimSpace(os.ExpandEnv(e.Type))
	e.APIKey = strings.TrimSpace(os.ExpandEnv(e.APIKey))
	e.APISecret = strings.TrimSpace(os.ExpandEnv(e.APISecret))
	e.BaseURL = strings.TrimSpace(os.ExpandEnv(e.BaseURL))
	e.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(e.TimeoutRaw))
	e.MarketPollRaw = strings.TrimSpace(os.ExpandEnv(e.MarketPollRaw))
	e.PrivatePollRaw = strings.TrimSpace(os.ExpandEnv(e.PrivatePollRaw))
	e.ContractTTLRaw = strings.TrimSpace(os.ExpandEnv(e.ContractTTLRaw))
}

func (e *ExchangeConfig) parseDurations(name string) error {
	for _, field := range []struct {
		raw  string
		dest *time.Duration
		key  string
	}{
		{e.TimeoutRaw, &e.Timeout, "timeout"},
		{e.MarketPollRaw, &e.MarketPollInterval, "market_poll_interval"},
		{e.PrivatePollRaw, &e.PrivatePollInterval, "private_poll_interval"},
		{e.ContractTTLRaw, &e.ContractTTL, "contract_cache_ttl"},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return fmt.Errorf("exchange %s: invalid %s %q: %w", name, field.key, field.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("exchange %s: %s must be positive, got %s", name, field.key, d)
		}
		*field.dest = d
	}
	return nil
}

// Validate ensures all exchanges have sane configuration.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("exchange config: exchanges cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Exchanges[c.Default]; !ok {
			return fmt.Errorf("exchange config: default exchange %q not defined", c.Default)
		}
	}
	for name, ex := range c.Exchanges {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("exchange config: exchange name cannot be empty")
		}
		if err := ex.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (e *ExchangeConfig) validate(name string) error {
	if e == nil {
		return fmt.Errorf("exchange config: exchange %s is nil", name)
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("exchange config: exchange %s must specify type", name)
	}
	if _, ok := lookupBuilder(e.Type); !ok {
		return fmt.Errorf("exchange config: exchange %s has unsupported type %q", name, e.Type)
	}
	return nil
}

// BuildExchanges instantiates exchanges according to the configuration.
func (c *Config) BuildExchanges() (map[string]FuturesExchange, error) {
	result := make(map[string]FuturesExchange, len(c.Exchanges))
	for name, cfg := range c.Exchanges {
		builder, ok := lookupBuilder(cfg.Type)
		if !ok {
			return nil, fmt.Errorf("exchange %s: unsupported type %q", name, cfg.Type)
		}
		ex, err := builder(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", name, err)
		}
		result[name] = ex
	}
	return result, nil
}
