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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 6, cfg.Periods)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.Users)
	assert.Equal(t, "R$", cfg.Currency)
	assert.Equal(t, ScopePooled, cfg.ForecastScope)
	assert.Equal(t, DefaultCatalog(), cfg.Catalog)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
seed: 7
periods: 12
users: [10, 20]
currency: "£"
forecast_scope: per_appliance
cache_ttl: 30m
generator:
  tariff_min: 0.2
  tariff_max: 0.4
catalog:
  - name: Kettle
    category: Kitchen
    baseline_hours: 15
forest:
  trees: 50
mqtt:
  enabled: true
  broker: localhost:1883
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 12, cfg.Periods)
	assert.Equal(t, []int{10, 20}, cfg.Users)
	assert.Equal(t, "£", cfg.Currency)
	assert.Equal(t, ScopePerAppliance, cfg.ForecastScope)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.2, cfg.Generator.TariffMin)
	assert.Equal(t, 1.5, cfg.Generator.UtilizationMax, "unset fields keep their defaults")
	assert.Equal(t, Catalog{{Name: "Kettle", Category: "Kitchen", BaselineHours: 15}}, cfg.Catalog)
	assert.Equal(t, 50, cfg.Forest.Trees)
	assert.Equal(t, 2, cfg.Forest.MinSamplesSplit)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "appliancebudget", cfg.MQTT.TopicPrefix)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "periods: [not a number"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("APPLIANCEBUDGET_SEED", "99")
	t.Setenv("APPLIANCEBUDGET_TARGET_USER", "3")
	t.Setenv("APPLIANCEBUDGET_CURRENCY", "€")
	t.Setenv("APPLIANCEBUDGET_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("APPLIANCEBUDGET_MQTT_BROKER", "broker:1883")
	t.Setenv("APPLIANCEBUDGET_DEBUG", "1")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 3, cfg.TargetUser)
	assert.Equal(t, "€", cfg.Currency)
	assert.Equal(t, "/tmp/other.db", cfg.DatabasePath)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker:1883", cfg.MQTT.Broker)
	assert.True(t, cfg.Debug)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"one period", func(c *Config) { c.Periods = 1 }},
		{"no users", func(c *Config) { c.Users = nil }},
		{"negative current period", func(c *Config) { c.CurrentPeriod = -1 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"negative cache ttl", func(c *Config) { c.CacheTTL = -time.Second }},
		{"unknown scope", func(c *Config) { c.ForecastScope = "global" }},
		{"empty catalog", func(c *Config) { c.Catalog = nil }},
		{"bad generator range", func(c *Config) { c.Generator.UtilizationMin = 0 }},
		{"no trees", func(c *Config) { c.Forest.Trees = 0 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidArgument)

			var configErr *ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestValidateFillsStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoragePath = ""
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.StoragePath)
}
