package config

import (
	"io/fs"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	RabbitMQ  RabbitMQ  `yaml:"rabbitmq"`
	Redis     Redis     `yaml:"redis"`
	Estimator Estimator `yaml:"estimator"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQ struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Redis struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
	// SnapshotTTLSeconds bounds how stale a cached queue snapshot may get.
	SnapshotTTLSeconds int `yaml:"snapshot_ttl_seconds"`
}

func (r Redis) SnapshotTTL() time.Duration {
	return time.Duration(r.SnapshotTTLSeconds) * time.Second
}

type Estimator struct {
	// DefaultSeconds is the expected duration for recipes with neither
	// history nor a catalog entry.
	DefaultSeconds int `yaml:"default_seconds"`
	// Decay is the EWMA weight kept from the previous average per sample.
	Decay float64 `yaml:"decay"`
}

func (e Estimator) DefaultDuration() time.Duration {
	return time.Duration(e.DefaultSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	cfg.applyDefaults()
	if cfg.Database.Host == "" {
		return nil, errors.New("invalid config: missing database host")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}
	if c.RabbitMQ.VHost == "" {
		c.RabbitMQ.VHost = "/"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.SnapshotTTLSeconds == 0 {
		c.Redis.SnapshotTTLSeconds = 10
	}
	if c.Estimator.DefaultSeconds == 0 {
		c.Estimator.DefaultSeconds = 60
	}
	if c.Estimator.Decay == 0 {
		c.Estimator.Decay = 0.8
	}
}

// FindConfig probes the usual locations for a config file.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
