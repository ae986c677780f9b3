package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"

	"perpflow/pkg/confkit"
	exchangepkg "perpflow/pkg/exchange"
)

// Config is the application-level configuration. The exchange section may
// live inline or in its own file referenced by Exchange.File.
type Config struct {
	// Env indicates the running environment: test | dev | prod.
	Env      string `json:",default=test"`
	LogLevel string `json:",default=info,options=debug|info|error|severe"`

	Exchange confkit.Section[exchangepkg.Config] `json:",optional"`

	mainPath string
	baseDir  string
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test" || c.Env == ""
}

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the main config file, expands ${VAR} references from the
// environment (a .env file is consulted once per process) and hydrates the
// exchange section.
func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.TrimSpace(c.Env) {
	case "", "test", "dev", "prod":
		return nil
	default:
		return fmt.Errorf("config: invalid env %q (want test, dev or prod)", c.Env)
	}
}

func (c *Config) hydrateSections() error {
	if err := c.Exchange.Hydrate(c.baseDir, loadExchangeFile); err != nil {
		return fmt.Errorf("hydrate exchange config: %w", err)
	}
	return nil
}

func loadExchangeFile(path string) (*exchangepkg.Config, error) {
	return exchangepkg.LoadConfig(path)
}

// MainPath returns the absolute path of the loaded main config file.
func (c *Config) MainPath() string { return c.mainPath }

// BaseDir returns the directory section files are resolved against.
func (c *Config) BaseDir() string { return c.baseDir }

// MustLoadExchange loads etc/exchange.yaml from the project root and panics
// on error. It isolates the exchange section so tests and tools never need
// the full application config.
func MustLoadExchange() *exchangepkg.Config {
	path := confkit.MustProjectPath(filepath.Join("etc", "exchange.yaml"))
	cfg, err := exchangepkg.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load exchange config %s: %w", path, err))
	}
	return cfg
}

// MustBuildExchanges loads the default exchange config and builds an
// adapter per configured venue; returns the map and the default venue name.
func MustBuildExchanges() (map[string]exchangepkg.FuturesExchange, string) {
	cfg := MustLoadExchange()
	exchanges, err := cfg.BuildExchanges()
	if err != nil {
		panic(err)
	}
	return exchanges, cfg.Default
}
