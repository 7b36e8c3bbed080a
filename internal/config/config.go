// Package config loads service configuration from an optional YAML file with
// environment variable overrides, so Docker deployments can configure the
// service without a file at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Database holds the Postgres connection settings
type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the full service configuration
type Config struct {
	HTTPAddr string   `yaml:"http_addr"`
	APIToken string   `yaml:"api_token"`
	Database Database `yaml:"database"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then environment
// variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HTTPAddr: ":8080",
		APIToken: "dev-token",
		Database: Database{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "fpm",
			SSLMode: "disable",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	overrideFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	overrideFromEnv(&cfg.APIToken, "API_TOKEN")
	overrideFromEnv(&cfg.Database.Host, "DB_HOST")
	overrideFromEnv(&cfg.Database.Port, "DB_PORT")
	overrideFromEnv(&cfg.Database.User, "DB_USER")
	overrideFromEnv(&cfg.Database.Password, "DB_PASSWORD")
	overrideFromEnv(&cfg.Database.Name, "DB_NAME")
	overrideFromEnv(&cfg.Database.SSLMode, "DB_SSLMODE")

	return cfg, nil
}

// ConnString renders the database settings as a lib/pq connection string
func (c *Config) ConnString() string {
	if explicit := os.Getenv("DB_CONN_STR"); explicit != "" {
		return explicit
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.Name, c.Database.SSLMode)
}

func overrideFromEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
