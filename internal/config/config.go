package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Goals     GoalsConfig     `yaml:"goals"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`
}

type GoalsConfig struct {
	// WeeklyTarget is the default contents-per-week target used when a
	// goal is seeded for a new identity.
	WeeklyTarget int `yaml:"weekly_target"`
}

type SchedulerConfig struct {
	// Enabled controls the weekly goal rollover job.
	Enabled bool `yaml:"enabled"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "data/sprout.db",
		},
		Goals: GoalsConfig{
			WeeklyTarget: 5,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
	}
}

// Load reads the yaml config at path over the defaults. A missing file is
// not an error: the defaults apply, and the environment can still override.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployments override the file without editing it. DSNs in
// particular carry credentials and belong in the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
}
