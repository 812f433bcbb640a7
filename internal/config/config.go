package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"    mapstructure:"backend"`
	Locks     LocksConfig     `yaml:"locks"      mapstructure:"locks"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Inventory InventoryConfig `yaml:"inventory"  mapstructure:"inventory"`
}

type BackendConfig struct {
	Locks       LockBackendConfig       `yaml:"locks"       mapstructure:"locks"`
	Credentials CredentialBackendConfig `yaml:"credentials" mapstructure:"credentials"`
}

type LockBackendConfig struct {
	Type       string `yaml:"type"       mapstructure:"type"`
	Project    string `yaml:"project"    mapstructure:"project"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

type CredentialBackendConfig struct {
	Type    string `yaml:"type"    mapstructure:"type"`
	Token   string `yaml:"token"   mapstructure:"token"`
	Project string `yaml:"project" mapstructure:"project"`
	Secret  string `yaml:"secret"  mapstructure:"secret"`
}

type LocksConfig struct {
	TTL           time.Duration `yaml:"ttl"            mapstructure:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

type RateLimitConfig struct {
	Window time.Duration `yaml:"window" mapstructure:"window"`
	// Ceilings maps client class to requests per window. The "default"
	// class applies to everyone not placed in a more specific class.
	Ceilings map[string]int `yaml:"ceilings" mapstructure:"ceilings"`
}

type InventoryConfig struct {
	BaseURL  string        `yaml:"base_url"  mapstructure:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// FailOpen treats items as available when the catalog read errors.
	// Off by default; failing closed cannot oversell.
	FailOpen bool `yaml:"fail_open" mapstructure:"fail_open"`
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.Locks.Type == "" {
		cfg.Backend.Locks.Type = "memory"
	}
	if cfg.Backend.Credentials.Type == "" {
		cfg.Backend.Credentials.Type = "static"
	}
	if cfg.Locks.TTL == 0 {
		cfg.Locks.TTL = 10 * time.Minute
	}
	if cfg.Locks.SweepInterval == 0 {
		cfg.Locks.SweepInterval = time.Minute
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Ceilings == nil {
		cfg.RateLimit.Ceilings = map[string]int{}
	}
	if cfg.RateLimit.Ceilings["default"] == 0 {
		cfg.RateLimit.Ceilings["default"] = 10
	}
	if cfg.Inventory.CacheTTL == 0 {
		cfg.Inventory.CacheTTL = time.Minute
	}
}

func validate(cfg *Config) error {
	switch cfg.Backend.Locks.Type {
	case "memory":
	case "firestore":
		if cfg.Backend.Locks.Project == "" {
			return fmt.Errorf("backend.locks.project is required for the firestore backend")
		}
		if cfg.Backend.Locks.Collection == "" {
			return fmt.Errorf("backend.locks.collection is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown lock backend type: %q", cfg.Backend.Locks.Type)
	}

	switch cfg.Backend.Credentials.Type {
	case "static":
	case "gcp-secret-manager":
		if cfg.Backend.Credentials.Project == "" {
			return fmt.Errorf("backend.credentials.project is required for the gcp-secret-manager backend")
		}
		if cfg.Backend.Credentials.Secret == "" {
			return fmt.Errorf("backend.credentials.secret is required for the gcp-secret-manager backend")
		}
	default:
		return fmt.Errorf("unknown credential backend type: %q", cfg.Backend.Credentials.Type)
	}

	if cfg.Locks.TTL < 0 {
		return fmt.Errorf("locks.ttl must not be negative")
	}
	if cfg.Locks.SweepInterval < 0 {
		return fmt.Errorf("locks.sweep_interval must be >= 0")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be > 0")
	}
	for class, n := range cfg.RateLimit.Ceilings {
		if class == "" {
			return fmt.Errorf("rate_limit.ceilings: class name is required")
		}
		if n <= 0 {
			return fmt.Errorf("rate_limit.ceilings[%q] must be > 0", class)
		}
	}
	if cfg.Inventory.BaseURL == "" {
		return fmt.Errorf("inventory.base_url is required")
	}
	if cfg.Inventory.CacheTTL <= 0 {
		return fmt.Errorf("inventory.cache_ttl must be > 0")
	}

	return nil
}
