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
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// Reporter generates markdown reports from analysis results
type Reporter struct {
	logger *Logger
}

// NewReporter creates a new report generator
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{
		logger: logger,
	}
}

// GenerateReport creates a markdown report from analysis results
func (r *Reporter) GenerateReport(result *AnalysisResult, outputPath string) error {
	r.logger.Info("Generating report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteReport(writer, result)

	if outputPath != "" {
		r.logger.Info("Report saved", "path", outputPath)
	}

	return nil
}

// WriteReport renders the markdown report to w
func (r *Reporter) WriteReport(w io.Writer, result *AnalysisResult) {
	r.writeHeader(w, result)
	r.writeSummary(w, result)
	r.writeApplianceCosts(w, result)
	r.writeRecommendations(w, result)
	r.writeSkipped(w, result)
	r.writeCohort(w, result)
	r.writeFooter(w)
}

// writeHeader writes the report header
func (r *Reporter) writeHeader(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "# Appliance Budget Report\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**User:** %d | **Period:** %d (compared with period %d)\n\n",
		result.UserID, result.CurrentPeriod, result.PreviousPeriod)
	fmt.Fprintf(w, "**Forecast:** random forest, %s scope, trained on %s records\n\n",
		result.ForecastScope, humanize.Comma(int64(result.TrainingRecords)))
	fmt.Fprintf(w, "**appliancebudget version:** %s\n\n", GetVersion())
	fmt.Fprintf(w, "---\n\n")
}

// writeSummary writes the period totals
func (r *Reporter) writeSummary(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "## 📊 Summary\n\n")

	indicator := "✅"
	if result.PeriodSavings < 0 {
		indicator = "⚠️"
	}

	fmt.Fprintf(w, "| Item | Amount |\n")
	fmt.Fprintf(w, "|------|--------|\n")
	fmt.Fprintf(w, "| Previous Period Total | %s |\n", r.money(result, result.PreviousPeriodTotal))
	fmt.Fprintf(w, "| Current Period Total | %s |\n", r.money(result, result.CurrentPeriodTotal))
	fmt.Fprintf(w, "| Predicted Total | %s |\n", r.money(result, result.PredictedTotal))
	fmt.Fprintf(w, "| %s Period-over-Period Savings | %s (%s) |\n\n",
		indicator, r.money(result, result.PeriodSavings), result.PeriodSavingsPct)
}

// writeApplianceCosts writes actual against predicted cost per appliance
func (r *Reporter) writeApplianceCosts(w io.Writer, result *AnalysisResult) {
	if len(result.ApplianceCosts) == 0 {
		return
	}

	fmt.Fprintf(w, "## 🔌 Cost per Appliance\n\n")
	fmt.Fprintf(w, "| Appliance | Category | Actual | Predicted | Difference |\n")
	fmt.Fprintf(w, "|-----------|----------|--------|-----------|------------|\n")
	for _, c := range result.ApplianceCosts {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			escapeMarkdown(c.Appliance),
			escapeMarkdown(c.Category),
			r.money(result, c.Actual),
			r.money(result, c.Predicted),
			r.money(result, c.Actual-c.Predicted),
		)
	}
	fmt.Fprintf(w, "\n")
}

// writeRecommendations writes the recommendation texts in analysis order
func (r *Reporter) writeRecommendations(w io.Writer, result *AnalysisResult) {
	if len(result.Recommendations) == 0 {
		return
	}

	fmt.Fprintf(w, "## 💡 Recommendations\n\n")
	for _, rec := range result.Recommendations {
		marker := "🟢"
		if rec.CanSave {
			marker = "🟡"
		}
		fmt.Fprintf(w, "- %s %s\n", marker, escapeMarkdown(rec.Text))
	}
	fmt.Fprintf(w, "\n")
}

// writeSkipped lists appliances that could not be analysed
func (r *Reporter) writeSkipped(w io.Writer, result *AnalysisResult) {
	if len(result.Skipped) == 0 {
		return
	}

	fmt.Fprintf(w, "### ⚠️ Not Analysed\n\n")
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "- **%s:** %s\n", escapeMarkdown(s.Appliance), escapeMarkdown(s.Reason))
	}
	fmt.Fprintf(w, "\n")
}

// writeCohort writes the comparison with other users
func (r *Reporter) writeCohort(w io.Writer, result *AnalysisResult) {
	cohort := result.Cohort
	if len(cohort.Totals) == 0 {
		return
	}

	fmt.Fprintf(w, "## 👥 Comparison with Other Users\n\n")
	fmt.Fprintf(w, "Your spend of %s is the %s lowest of %d users; the cohort average is %s (%s vs average).\n\n",
		r.money(result, cohort.Target),
		humanize.Ordinal(cohort.Rank),
		len(cohort.Totals),
		r.money(result, cohort.CohortAverage),
		cohort.VsAverage,
	)

	fmt.Fprintf(w, "| User | Total |\n")
	fmt.Fprintf(w, "|------|-------|\n")
	for _, t := range cohort.SortedTotals() {
		name := fmt.Sprintf("%d", t.UserID)
		if t.UserID == cohort.TargetUserID {
			name = fmt.Sprintf("**%d (you)**", t.UserID)
		}
		fmt.Fprintf(w, "| %s | %s |\n", name, r.money(result, t.Total))
	}
	fmt.Fprintf(w, "\n")
}

// writeFooter writes the report footer
func (r *Reporter) writeFooter(w io.Writer) {
	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "*Predictions come from a model trained on your own previous periods and may differ from your actual bills.*\n\n")
	fmt.Fprintf(w, "*Generated by appliancebudget*\n")
}

// markdownEscaper keeps user text from splitting table cells or lines
var markdownEscaper = strings.NewReplacer("|", "\\|", "\r\n", " ", "\n", " ")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func (r *Reporter) money(result *AnalysisResult, v float64) string {
	return humanMoney(result.Currency, v)
}

// humanMoney formats an amount with thousands separators and the currency symbol
func humanMoney(currency string, v float64) string {
	formatted := currency + humanize.FormatFloat("#,###.##", math.Abs(v))
	if v < 0 {
		return "-" + formatted
	}
	return formatted
}
