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

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debugLogs bool
	jsonLogs  bool
)

var rootCmd = &cobra.Command{
	Use:   "appliancebudget",
	Short: "Forecast appliance energy costs and recommend savings",
	Long: `appliancebudget generates per-appliance usage records, trains a per-user
random forest on previous periods and compares the current period's costs
against the forecast, the previous period and the other users.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
}

// loadConfig loads and validates the configuration, applying the --debug flag
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugLogs {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger selected by the persistent flags
func newLogger(cfg *Config) *Logger {
	if jsonLogs {
		return NewJSONLogger(cfg.Debug)
	}
	return NewLogger(cfg.Debug)
}

// databasePath returns the flag value when set, otherwise the configured path
func databasePath(flagValue string, cfg *Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.DatabasePath
}

// loadRecords reads records from the CSV file when given, otherwise from the database
func loadRecords(cmd *cobra.Command, csvPath, dbPath string, cfg *Config, logger *Logger) ([]UsageRecord, error) {
	if csvPath != "" {
		logger.Info("Loading records", "csv", csvPath)
		return LoadRecordsCSV(csvPath)
	}

	path := databasePath(dbPath, cfg)
	logger.Info("Loading records", "database", path)
	db, err := OpenDatabase(path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return db.ListRecords(cmd.Context())
}
