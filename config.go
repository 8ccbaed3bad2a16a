// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Generation settings
	Seed      uint64           `yaml:"seed"`
	Periods   int              `yaml:"periods"`
	Users     []int            `yaml:"users"`
	Generator GeneratorOptions `yaml:"generator"`
	Catalog   Catalog          `yaml:"catalog"`

	// Analysis settings
	TargetUser    int           `yaml:"target_user"`
	CurrentPeriod int           `yaml:"current_period"` // 0 = latest period in the data
	Currency      string        `yaml:"currency"`
	ForecastScope string        `yaml:"forecast_scope"` // pooled or per_appliance
	Forest        ForestOptions `yaml:"forest"`
	Parallelism   int           `yaml:"parallelism"`
	CacheTTL      time.Duration `yaml:"cache_ttl"` // 0 disables the forecast cache

	// Storage
	StoragePath  string `yaml:"storage_path"`
	DatabasePath string `yaml:"database_path"`

	// Publishing
	MQTT MQTTConfig `yaml:"mqtt"`

	// Debugging
	Debug bool `yaml:"debug"`
}

// MQTTConfig holds MQTT broker settings for publishing results
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Seed:          42,
		Periods:       6,
		Users:         []int{1, 2, 3, 4, 5},
		Generator:     DefaultGeneratorOptions(),
		Catalog:       DefaultCatalog(),
		TargetUser:    1,
		Currency:      "R$",
		ForecastScope: ScopePooled,
		Forest:        DefaultForestOptions(),
		Parallelism:   4,
		CacheTTL:      24 * time.Hour,
		StoragePath:   getDefaultStoragePath(),
		DatabasePath:  "appliancebudget.db",
		MQTT: MQTTConfig{
			TopicPrefix: "appliancebudget",
			ClientID:    "appliancebudget",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Set defaults
	config := DefaultConfig()

	// If no path provided, return defaults with env var overrides
	if path == "" {
		config.applyEnvironmentVariables()
		return config, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentVariables()

	return config, nil
}

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".appliancebudget"
	}
	return filepath.Join(home, ".config", "appliancebudget")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() {
	if val := os.Getenv("APPLIANCEBUDGET_SEED"); val != "" {
		if seed, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if val := os.Getenv("APPLIANCEBUDGET_TARGET_USER"); val != "" {
		if id, err := strconv.Atoi(val); err == nil {
			c.TargetUser = id
		}
	}
	if val := os.Getenv("APPLIANCEBUDGET_CURRENCY"); val != "" {
		c.Currency = val
	}
	if val := os.Getenv("APPLIANCEBUDGET_STORAGE_PATH"); val != "" {
		c.StoragePath = val
	}
	if val := os.Getenv("APPLIANCEBUDGET_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("APPLIANCEBUDGET_MQTT_BROKER"); val != "" {
		c.MQTT.Broker = val
		c.MQTT.Enabled = true
	}
	if val := os.Getenv("APPLIANCEBUDGET_MQTT_USERNAME"); val != "" {
		c.MQTT.Username = val
	}
	if val := os.Getenv("APPLIANCEBUDGET_MQTT_PASSWORD"); val != "" {
		c.MQTT.Password = val
	}
	if val := os.Getenv("APPLIANCEBUDGET_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Periods < 2 {
		errors = append(errors, "periods must be at least 2 (one to train on, one to analyse)")
	}
	if len(c.Users) == 0 {
		errors = append(errors, "users must list at least one user id")
	}
	if c.CurrentPeriod < 0 {
		errors = append(errors, "current_period must not be negative")
	}
	if c.CacheTTL < 0 {
		errors = append(errors, "cache_ttl must not be negative")
	}
	if c.Parallelism < 1 {
		errors = append(errors, "parallelism must be at least 1")
	}

	switch c.ForecastScope {
	case ScopePooled, ScopePerAppliance:
	default:
		errors = append(errors, fmt.Sprintf("forecast_scope must be %q or %q", ScopePooled, ScopePerAppliance))
	}

	for _, err := range []error{c.Catalog.Validate(), c.Generator.Validate(), c.Forest.Validate()} {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errors = append(errors, "mqtt.broker is required when mqtt is enabled")
	}

	// Set default storage path if empty
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}

	if len(errors) > 0 {
		return &ConfigError{
			Field:   "config",
			Message: fmt.Sprintf("validation failed:\n  - %s", strings.Join(errors, "\n  - ")),
		}
	}

	return nil
}
