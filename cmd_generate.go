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
	generateCSV    string
	generateDB     string
	generateAppend bool
	generateExport bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic usage records",
	Long: `Generates one record per (period, user, appliance) from the configured seed,
users and appliance catalog. Records replace the contents of the database, or
with --append are added alongside it keeping existing rows, and are optionally
written to a CSV file as well.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateCSV, "csv", "", "Also write records to this CSV file")
	generateCmd.Flags().StringVar(&generateDB, "db", "", "Database file (default from config)")
	generateCmd.Flags().BoolVar(&generateAppend, "append", false, "Keep existing records; rows already stored are left unchanged")
	generateCmd.Flags().BoolVar(&generateExport, "export", false, "Also write records as CSV into the storage directory")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	gen := NewGenerator(cfg.Seed, cfg.Generator)
	records, err := gen.Generate(cfg.Periods, cfg.Users, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("generating records: %w", err)
	}
	logger.LogDataGeneration(cfg.Periods, len(cfg.Users), len(records))

	if err := NewStore(records).Validate(); err != nil {
		return fmt.Errorf("generated records failed validation: %w", err)
	}

	path := databasePath(generateDB, cfg)
	db, err := OpenDatabase(path, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if generateAppend {
		inserted, err := db.InsertRecords(cmd.Context(), records)
		if err != nil {
			return fmt.Errorf("appending records: %w", err)
		}
		logger.Info("Records appended", "inserted", inserted, "already_stored", len(records)-inserted)
	} else if err := db.ReplaceRecords(cmd.Context(), records); err != nil {
		return fmt.Errorf("storing records: %w", err)
	}

	if generateCSV != "" {
		if err := SaveRecordsCSV(generateCSV, records); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		logger.Info("Records written", "csv", generateCSV)
	}

	if generateExport {
		storage, err := NewStorage(cfg.StoragePath, logger)
		if err != nil {
			return fmt.Errorf("initialising storage: %w", err)
		}
		exported, err := storage.SaveRecords(exportName(cfg.Seed), records)
		if err != nil {
			return fmt.Errorf("exporting records: %w", err)
		}
		logger.Info("Records exported", "csv", exported)
	}

	logger.UserMessage("Generated %d records for %d users over %d periods (seed %d) into %s",
		len(records), len(cfg.Users), cfg.Periods, cfg.Seed, path)
	return nil
}

// exportName names the storage-directory CSV after the seed that produced it
func exportName(seed uint64) string {
	return fmt.Sprintf("records_seed%d.csv", seed)
}
