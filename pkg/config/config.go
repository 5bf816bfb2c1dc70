// Package config loads the daemon and CLI configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// HOSTCRON_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pcc2/hostcron/pkg/logging"
	"github.com/pcc2/hostcron/pkg/store"
)

const (
	DefaultPath     = "hostcron.yaml"
	DefaultDB       = "hostcron.db"
	DefaultListen   = "127.0.0.1:6390"
	DefaultPoolSize = 4
	DefaultTimeout  = 30 * time.Minute
	DefaultMaxSleep = time.Hour
)

// Config is the full configuration.
type Config struct {
	Database string      `yaml:"database"`
	Redis    RedisConfig `yaml:"redis"`
	Listen   string      `yaml:"listen"`

	// Command lines run for host and master jobs. "{game}" is replaced
	// by the game id.
	HostCommand   []string `yaml:"hostCommand"`
	MasterCommand []string `yaml:"masterCommand"`

	RunTimeout time.Duration `yaml:"runTimeout"`
	MaxSleep   time.Duration `yaml:"maxSleep"`
	LogLevel   string        `yaml:"logLevel"`
}

// RedisConfig selects the Redis store backend when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"poolSize"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:   DefaultDB,
		Redis:      RedisConfig{PoolSize: DefaultPoolSize},
		Listen:     DefaultListen,
		RunTimeout: DefaultTimeout,
		MaxSleep:   DefaultMaxSleep,
		LogLevel:   "info",
	}
}

// Load reads the file named by HOSTCRON_CONFIG (or DefaultPath) and applies
// environment overrides. A missing default file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("HOSTCRON_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg = Default()
		} else {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads a YAML file on top of the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("HOSTCRON_DB"); v != "" {
		c.Database = v
	}
	if v := getenv("HOSTCRON_REDIS"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("HOSTCRON_REDIS_POOL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTCRON_REDIS_POOL: invalid size %q", v)
		}
		c.Redis.PoolSize = n
	}
	if v := getenv("HOSTCRON_ADDR"); v != "" {
		c.Listen = v
	}
	if v := getenv("HOSTCRON_HOST_CMD"); v != "" {
		c.HostCommand = strings.Fields(v)
	}
	if v := getenv("HOSTCRON_MASTER_CMD"); v != "" {
		c.MasterCommand = strings.Fields(v)
	}
	if v := getenv("HOSTCRON_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks values needed by every command. ValidateServe adds the
// checks that only matter for the daemon.
func (c *Config) Validate() error {
	var errs []string
	if c.Redis.Addr == "" && c.Database == "" {
		errs = append(errs, "database is required when redis.addr is empty")
	}
	if c.Redis.Addr != "" && c.Redis.PoolSize <= 0 {
		errs = append(errs, "redis.poolSize must be positive")
	}
	if c.Listen == "" {
		errs = append(errs, "listen is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	return joinErrs(errs)
}

// ValidateServe checks the configuration for running the daemon.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errs []string
	if len(c.HostCommand) == 0 {
		errs = append(errs, "hostCommand is required")
	}
	if len(c.MasterCommand) == 0 {
		errs = append(errs, "masterCommand is required")
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, "runTimeout must be positive")
	}
	if c.MaxSleep < time.Minute {
		errs = append(errs, "maxSleep must be at least 1m")
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
}

// OpenStore opens the configured backend: Redis when an address is set,
// SQLite otherwise.
func (c *Config) OpenStore() (store.Store, error) {
	if c.Redis.Addr != "" {
		s, err := store.NewRedis(c.Redis.Addr, c.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to redis %q: %w", c.Redis.Addr, err)
		}
		return s, nil
	}
	s, err := store.New(c.Database)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", c.Database, err)
	}
	return s, nil
}
