// Package config loads the rainmeta YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"rainlang.xyz/rainmeta/storage/casconfig"
	"rainlang.xyz/rainmeta/subgraph"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "RAINMETA_CONFIG"

// Config is the on-disk configuration.
//
// Example:
//
//	subgraphs:
//	  - https://api.thegraph.com/subgraphs/name/rainprotocol/interpreter-registry-polygon
//	chains: [mumbai]
//	timeout: 5s
//	log:
//	  level: debug
//	cas:
//	  backends:
//	    - name: localfs
//	      config: {localfs-dir: /var/lib/rainmeta}
type Config struct {
	Subgraphs []string          `yaml:"subgraphs"`
	Chains    []string          `yaml:"chains"`
	Timeout   time.Duration     `yaml:"timeout"`
	Log       LogConfig         `yaml:"log"`
	CAS       *casconfig.Config `yaml:"cas"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Timeout: subgraph.DefaultTimeout, Log: LogConfig{Level: "info"}}
}

// ResolvePath returns path, or $RAINMETA_CONFIG when path is empty.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv(EnvPath)
}

// Load reads and validates the file at path. An empty path after resolution
// yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	path = ResolvePath(path)
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	for _, s := range c.Subgraphs {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("subgraph %q is not an http(s) url", s)
		}
	}
	for _, ch := range c.Chains {
		if _, ok := subgraph.KnownSubgraphs(ch); !ok {
			return fmt.Errorf("unknown chain %q", ch)
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		return err
	}
	if c.CAS != nil {
		return c.CAS.Validate()
	}
	return nil
}

// Endpoints returns the configured subgraphs followed by those of every
// configured chain, without duplicates.
func (c Config) Endpoints() []string {
	var out []string
	seen := map[string]bool{}
	add := func(urls []string) {
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	add(c.Subgraphs)
	for _, ch := range c.Chains {
		urls, _ := subgraph.KnownSubgraphs(ch)
		add(urls)
	}
	return out
}

// ZapLevel parses Level; empty means info.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	if strings.TrimSpace(l.Level) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return lvl, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds a production logger at the configured level writing to
// stderr.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	lvl, err := l.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
