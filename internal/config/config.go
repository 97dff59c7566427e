package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the YAML configuration.
type Config struct {
	Version int          `yaml:"version"`
	Global  GlobalConfig `yaml:"global"`
	Chains  ChainsConfig `yaml:"chains"`
	Arkiv   ArkivConfig  `yaml:"arkiv"`
}

type GlobalConfig struct {
	LogLevel string       `yaml:"log_level"`
	Dedupe   DedupeConfig `yaml:"dedupe"`
}

type DedupeConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	TTL     string `yaml:"ttl"`
}

type ChainsConfig struct {
	Base     *BaseChain     `yaml:"base"`
	Polkadot *PolkadotChain `yaml:"polkadot"`
}

type BaseChain struct {
	RPCURL        string `yaml:"rpc_url"`
	Contract      string `yaml:"contract"`
	PollInterval  string `yaml:"poll_interval"`
	Confirmations uint64 `yaml:"confirmations"`
}

type PolkadotChain struct {
	WSURL      string `yaml:"ws_url"`
	Contract   string `yaml:"contract"`
	SchemaPath string `yaml:"schema_path"`
}

type ArkivConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	PrivateKey string `yaml:"private_key"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate performs small, direct schema checks. Arkiv credentials are
// mandatory; chains are validated individually so a broken chain section
// surfaces before any connection is attempted.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if c.Chains.Base == nil && c.Chains.Polkadot == nil {
		return errors.New("at least one chain is required")
	}

	if c.Chains.Base != nil {
		if err := c.Chains.Base.Validate(); err != nil {
			return fmt.Errorf("chain base: %w", err)
		}
	}
	if c.Chains.Polkadot != nil {
		if err := c.Chains.Polkadot.Validate(); err != nil {
			return fmt.Errorf("chain polkadot: %w", err)
		}
	}

	if err := c.Arkiv.Validate(); err != nil {
		return fmt.Errorf("arkiv: %w", err)
	}

	if c.Global.Dedupe.Enabled {
		if c.Global.Dedupe.DBPath == "" {
			return errors.New("dedupe.db_path is required when dedupe is enabled")
		}
		if _, err := c.Global.Dedupe.ParseTTL(); err != nil {
			return err
		}
	}

	return nil
}

func (b *BaseChain) Validate() error {
	if b.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if b.Contract == "" {
		return errors.New("contract is required")
	}
	if _, err := b.ParsePollInterval(); err != nil {
		return err
	}
	return nil
}

// ParsePollInterval returns the configured poll interval, defaulting to 5s.
func (b *BaseChain) ParsePollInterval() (time.Duration, error) {
	if b.PollInterval == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(b.PollInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid poll_interval %q", b.PollInterval)
	}
	return d, nil
}

func (p *PolkadotChain) Validate() error {
	if p.WSURL == "" {
		return errors.New("ws_url is required")
	}
	if p.Contract == "" {
		return errors.New("contract is required")
	}
	return nil
}

func (a *ArkivConfig) Validate() error {
	if a.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if a.PrivateKey == "" {
		return errors.New("private_key is required")
	}
	return nil
}

// ParseTTL returns the dedupe retention window, defaulting to 24h.
func (d *DedupeConfig) ParseTTL() (time.Duration, error) {
	if d.TTL == "" {
		return 24 * time.Hour, nil
	}
	ttl, err := time.ParseDuration(d.TTL)
	if err != nil || ttl <= 0 {
		return 0, fmt.Errorf("invalid dedupe.ttl %q", d.TTL)
	}
	return ttl, nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
