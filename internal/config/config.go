package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// BaseScheduleOverride pins a recurring weekday pattern onto a base
// schedule by name, expressed as an RFC 5545 recurrence rule (e.g. a
// Monday/Wednesday/Friday cadence).
type BaseScheduleOverride struct {
	RRule            string `yaml:"rrule" validate:"required"`
	BaseScheduleName string `yaml:"baseScheduleName" validate:"required"`
}

// RedisConfig configures the optional learning-service cache.
type RedisConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// NotifyConfig configures the Gmail schedule-ready notifier.
type NotifyConfig struct {
	Enabled     bool   `yaml:"enabled"`
	GmailUserID string `yaml:"gmailUserID,omitempty"`
	Sender      string `yaml:"sender,omitempty"`
	Recipients  []string `yaml:"recipients,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	DatabaseURL           string                 `yaml:"databaseURL" validate:"required"`
	BaseScheduleOverrides []BaseScheduleOverride `yaml:"baseScheduleOverrides,omitempty" validate:"dive"`
	Redis                 RedisConfig            `yaml:"redis" validate:"required"`
	Metrics               MetricsConfig          `yaml:"metrics,omitempty"`
	Notify                NotifyConfig           `yaml:"notify,omitempty"`

	OPStartMin    *int `yaml:"opStartMin,omitempty" validate:"omitempty,min=0"`
	OPEndMin      *int `yaml:"opEndMin,omitempty" validate:"omitempty,min=0"`
	LunchStartMin *int `yaml:"lunchStartMin,omitempty" validate:"omitempty,min=0"`
	LunchEndMin   *int `yaml:"lunchEndMin,omitempty" validate:"omitempty,min=0"`
	MedicaidCap   *int `yaml:"medicaidCap,omitempty" validate:"omitempty,min=1"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from roster_config.yaml.
// It looks for the config file in the current directory first, then in
// the user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, override := range cfg.BaseScheduleOverrides {
		if _, err := rrule.StrToRRule(override.RRule); err != nil {
			return fmt.Errorf("invalid rrule in baseScheduleOverrides[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for roster_config.yaml in current directory and home directory.
func findConfigFile() (string, error) {
	configFileName := "roster_config.yaml"

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
