// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Kernel struct {
		Environment string `yaml:"environment"`
		Debug       bool   `yaml:"debug"`
		Version     string `yaml:"version"`
		ProjectDir  string `yaml:"project_dir"`
	} `yaml:"kernel"`

	Plugins struct {
		Active []string `yaml:"active"`
	} `yaml:"plugins"`

	Auth struct {
		JWTSecret    string `yaml:"jwt_secret"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"auth"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.URL = envOrDefault("KERNEL_DATABASE_URL", c.Database.URL)
	c.RabbitMQ.URL = envOrDefault("KERNEL_RABBITMQ_URL", c.RabbitMQ.URL)
	c.Auth.JWTSecret = envOrDefault("KERNEL_JWT_SECRET", c.Auth.JWTSecret)
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Kernel.Environment == "" {
		c.Kernel.Environment = "prod"
	}
	if c.Kernel.ProjectDir == "" {
		c.Kernel.ProjectDir = "."
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or KERNEL_DATABASE_URL)")
	}
	if c.Auth.ClientID != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.client_id is set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
