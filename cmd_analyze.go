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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	analyzeCSV     string
	analyzeDB      string
	analyzeUser    int
	analyzePeriod  int
	analyzeHTML    bool
	analyzeOutput  string
	analyzeCharts  string
	analyzePublish bool
	analyzeAll     bool
	analyzeNoCache bool
	analyzeClear   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Forecast costs and recommend savings",
	Long: `Loads usage records, trains a random forest on each user's previous periods
and reports actual against predicted cost per appliance, savings against the
previous period and how the user compares with everyone else.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "Read records from this CSV file instead of the database")
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "", "Database file (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeUser, "user", 0, "User to analyse (default from config)")
	analyzeCmd.Flags().IntVar(&analyzePeriod, "period", 0, "Period to analyse (default: latest)")
	analyzeCmd.Flags().BoolVar(&analyzeHTML, "html", false, "Generate HTML report instead of Markdown")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "Output file for report (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeCharts, "charts", "", "Write PNG charts into this directory")
	analyzeCmd.Flags().BoolVar(&analyzePublish, "publish", false, "Publish results to the configured MQTT broker")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Analyse every user in parallel")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Always refit the forecast models")
	analyzeCmd.Flags().BoolVar(&analyzeClear, "clear-cache", false, "Discard cached forecasts before analysing")
	analyzeCmd.MarkFlagsMutuallyExclusive("csv", "db")
	analyzeCmd.MarkFlagsMutuallyExclusive("no-cache", "clear-cache")
	analyzeCmd.MarkFlagsMutuallyExclusive("user", "all")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	records, err := loadRecords(cmd, analyzeCSV, analyzeDB, cfg, logger)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}

	store := NewStore(records)
	if err := store.Validate(); err != nil {
		return fmt.Errorf("records failed validation: %w", err)
	}
	logger.Info("Records loaded", "count", store.Len(), "users", len(store.Users()), "periods", len(store.Periods()))

	period := analyzePeriod
	if period == 0 {
		period = cfg.CurrentPeriod
	}

	analyzer := NewAnalyzer(store, cfg, logger)
	if cfg.CacheTTL > 0 && !analyzeNoCache {
		cache, err := NewForecastCache(cfg.StoragePath, cfg.CacheTTL, logger)
		if err != nil {
			logger.Warn("Forecast cache unavailable", "error", err)
		} else {
			if analyzeClear {
				if err := cache.Clear(); err != nil {
					return fmt.Errorf("clearing forecast cache: %w", err)
				}
			}
			analyzer.SetCache(cache)
		}
	}

	var results []*AnalysisResult
	if analyzeAll {
		results, err = analyzer.AnalyzeCohort(cmd.Context(), period)
		if err != nil {
			return fmt.Errorf("analysing cohort: %w", err)
		}
	} else {
		user := analyzeUser
		if user == 0 {
			user = cfg.TargetUser
		}
		result, err := analyzer.Analyze(user, period)
		if err != nil {
			return fmt.Errorf("analysing user %d: %w", user, err)
		}
		results = []*AnalysisResult{result}
	}

	storage, err := NewStorage(cfg.StoragePath, logger)
	if err != nil {
		return fmt.Errorf("initialising storage: %w", err)
	}

	var publisher *Publisher
	if analyzePublish {
		publisher, err = NewPublisher(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer publisher.Close()
	}

	charts := NewChartGenerator()
	for _, result := range results {
		if _, err := storage.SaveAnalysisResult(result); err != nil {
			logger.Warn("Failed to save analysis results", "user_id", result.UserID, "error", err)
		}

		if analyzeCharts != "" {
			paths, err := charts.WriteCharts(result, analyzeCharts)
			if err != nil {
				return fmt.Errorf("writing charts: %w", err)
			}
			logger.Info("Charts written", "user_id", result.UserID, "files", len(paths))
		}

		if publisher != nil {
			if err := publisher.PublishAnalysis(result); err != nil {
				return fmt.Errorf("publishing user %d: %w", result.UserID, err)
			}
		}

		output := reportPath(analyzeOutput, result.UserID, len(results) > 1)
		if err := writeReport(result, output, analyzeHTML, charts, logger); err != nil {
			return err
		}
	}

	logger.Info("Analysis completed successfully", "users", len(results))
	return nil
}

// writeReport renders one result as HTML (with embedded charts) or Markdown
func writeReport(result *AnalysisResult, output string, asHTML bool, charts *ChartGenerator, logger *Logger) error {
	if asHTML {
		if err := charts.EmbedCharts(result); err != nil {
			logger.Warn("Failed to render charts", "user_id", result.UserID, "error", err)
		}
		if err := NewHTMLReporter(logger).GenerateHTMLReport(result, output); err != nil {
			return fmt.Errorf("generating HTML report: %w", err)
		}
		return nil
	}

	if err := NewReporter(logger).GenerateReport(result, output); err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	return nil
}

// reportPath gives each user their own file when several reports share one --output
func reportPath(output string, userID int, multiple bool) string {
	if output == "" || !multiple {
		return output
	}
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_user%d%s", strings.TrimSuffix(output, ext), userID, ext)
}
