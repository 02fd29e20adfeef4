package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // parley-server
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
	TokenTTL  string `yaml:"tokenTTL"` // e.g. 24h
}

type Hub struct {
	IdleEviction string `yaml:"idleEviction"` // e.g. 10m
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Hub      Hub      `yaml:"hub"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "parley-server"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "parley"
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return parseDurationOr(24*time.Hour, c.Auth.TokenTTL)
}

func (c *Config) HubIdleEviction() time.Duration {
	return parseDurationOr(10*time.Minute, c.Hub.IdleEviction)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
