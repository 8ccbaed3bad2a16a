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
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	listDB   string
	listUser int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage records per period",
	Long: `Displays a per-period summary of the usage records stored in the database,
followed by the saved analyses and forecast cache in the storage directory.
With --user, also shows that user's records and latest saved analysis.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listDB, "db", "", "Database file (default from config)")
	listCmd.Flags().IntVar(&listUser, "user", 0, "Also show records and the latest analysis for this user")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := OpenDatabase(databasePath(listDB, cfg), logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	summaries, err := db.Summary(cmd.Context())
	if err != nil {
		return fmt.Errorf("summarising records: %w", err)
	}

	out := cmd.OutOrStdout()
	writePeriodSummary(out, summaries, cfg.Currency)

	if listUser != 0 {
		records, err := db.ListUserRecords(cmd.Context(), listUser)
		if err != nil {
			return fmt.Errorf("listing records for user %d: %w", listUser, err)
		}
		writeUserRecords(out, listUser, records, cfg.Currency)
	}

	storage, err := NewStorage(cfg.StoragePath, logger)
	if err != nil {
		return fmt.Errorf("initialising storage: %w", err)
	}

	var cache *ForecastCache
	if cfg.CacheTTL > 0 {
		cache, err = NewForecastCache(cfg.StoragePath, cfg.CacheTTL, logger)
		if err != nil {
			logger.Warn("Forecast cache unavailable", "error", err)
		}
	}

	return writeStorageSummary(out, storage, cache, listUser, cfg.Currency)
}

// writePeriodSummary prints one row per stored period and a grand total
func writePeriodSummary(out io.Writer, summaries []PeriodSummary, currency string) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	fmt.Fprintln(out, "----------------------------------------------------------")
	fmt.Fprintf(out, "%-8s  %6s  %8s  %16s  %12s\n", "Period", "Users", "Records", "Total cost", "Avg tariff")
	fmt.Fprintln(out, "----------------------------------------------------------")

	var total float64
	var records int
	for _, s := range summaries {
		fmt.Fprintf(out, "%-8d  %6d  %8s  %16s  %12.4f\n",
			s.Period, s.Users, humanize.Comma(int64(s.Records)), humanMoney(currency, s.TotalCost), s.AvgTariff)
		total += s.TotalCost
		records += s.Records
	}

	fmt.Fprintln(out, "----------------------------------------------------------")
	fmt.Fprintf(out, "Total: %s (%s records)\n", humanMoney(currency, total), humanize.Comma(int64(records)))
}

// writeUserRecords prints a user's per-period totals from their records, which arrive ordered by period
func writeUserRecords(out io.Writer, userID int, records []UsageRecord, currency string) {
	fmt.Fprintf(out, "\nUser %d:\n", userID)
	if len(records) == 0 {
		fmt.Fprintln(out, "  No records found")
		return
	}

	for start := 0; start < len(records); {
		end := start
		for end < len(records) && records[end].Period == records[start].Period {
			end++
		}
		period := records[start:end]
		fmt.Fprintf(out, "  Period %-4d  %2d appliances  %12s  (tariff %.4f)\n",
			period[0].Period, len(period), humanMoney(currency, TotalCost(period)), period[0].Tariff)
		start = end
	}
}

// writeStorageSummary prints saved analyses, cache usage and optionally a user's latest analysis
func writeStorageSummary(out io.Writer, storage *Storage, cache *ForecastCache, userID int, currency string) error {
	files, err := storage.ListStoredFiles()
	if err != nil {
		return fmt.Errorf("listing storage: %w", err)
	}

	analyses := 0
	for _, name := range files {
		if strings.Contains(name, "_analysis_") && strings.HasSuffix(name, ".json") {
			analyses++
		}
	}
	fmt.Fprintf(out, "\nStored analyses: %s\n", humanize.Comma(int64(analyses)))

	if cache != nil {
		total, expired := cache.Stats()
		fmt.Fprintf(out, "Cached forecasts: %s (%s expired)\n", humanize.Comma(int64(total)), humanize.Comma(int64(expired)))
	}

	if userID == 0 {
		return nil
	}

	latest, err := storage.LoadLatestAnalysis(userID)
	if err != nil {
		return fmt.Errorf("loading latest analysis for user %d: %w", userID, err)
	}
	if latest == nil {
		fmt.Fprintf(out, "No saved analysis for user %d\n", userID)
		return nil
	}

	fmt.Fprintf(out, "Latest analysis for user %d: period %d, generated %s\n",
		userID, latest.CurrentPeriod, humanize.Time(latest.GeneratedAt))
	fmt.Fprintf(out, "  Actual %s, predicted %s, %d recommendations\n",
		humanMoney(currency, latest.CurrentPeriodTotal), humanMoney(currency, latest.PredictedTotal),
		len(latest.Recommendations))
	return nil
}
