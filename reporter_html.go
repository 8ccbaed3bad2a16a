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
	"html"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// HTMLReporter generates HTML reports from analysis results
type HTMLReporter struct {
	logger *Logger
}

// NewHTMLReporter creates a new HTML report generator
func NewHTMLReporter(logger *Logger) *HTMLReporter {
	return &HTMLReporter{
		logger: logger,
	}
}

// GenerateHTMLReport generates an HTML report
func (r *HTMLReporter) GenerateHTMLReport(result *AnalysisResult, outputPath string) error {
	r.logger.Info("Generating HTML report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create HTML report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteHTMLReport(writer, result)

	if outputPath != "" {
		r.logger.Info("HTML report saved", "path", outputPath)
	}

	return nil
}

// WriteHTMLReport renders the HTML report to w
func (r *HTMLReporter) WriteHTMLReport(w io.Writer, result *AnalysisResult) {
	r.writeHTMLHeader(w, result)
	r.writeHTMLSummary(w, result)
	r.writeHTMLApplianceCosts(w, result)
	r.writeHTMLRecommendations(w, result)
	r.writeHTMLCohort(w, result)
	r.writeHTMLFooter(w)
}

func (r *HTMLReporter) writeHTMLHeader(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Appliance Budget Report - User %d</title>
    <style>
        :root {
            --primary-color: #FF006E;
            --secondary-color: #00C896;
            --warning-color: #FFB800;
            --danger-color: #FF006E;
            --success-color: #00C896;
            --bg-color: #0A0F1E;
            --card-bg: #1A2332;
            --text-color: #E8EAF6;
            --text-muted: #9FA8DA;
            --border-color: #2A3550;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: var(--bg-color);
            color: var(--text-color);
            line-height: 1.6;
            padding: 20px;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
        }

        header {
            background: linear-gradient(135deg, var(--primary-color), var(--secondary-color));
            padding: 40px;
            border-radius: 16px;
            margin-bottom: 30px;
        }

        h1 {
            font-size: 2.5em;
            margin-bottom: 10px;
        }

        .subtitle {
            color: rgba(255, 255, 255, 0.9);
            font-size: 1.1em;
        }

        .card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 30px;
            margin-bottom: 30px;
            border: 1px solid var(--border-color);
        }

        h2 {
            color: var(--primary-color);
            margin-bottom: 20px;
            border-bottom: 2px solid var(--border-color);
            padding-bottom: 10px;
        }

        h3 {
            color: var(--secondary-color);
            margin: 25px 0 15px 0;
        }

        table {
            width: 100%%;
            border-collapse: collapse;
            margin: 20px 0;
        }

        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid var(--border-color);
        }

        th {
            background: rgba(255, 0, 110, 0.1);
            color: var(--primary-color);
        }

        tr.you {
            font-weight: bold;
            background: rgba(0, 200, 150, 0.1);
        }

        .metric-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }

        .metric-card {
            background: rgba(255, 0, 110, 0.05);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 20px;
            text-align: center;
        }

        .metric-value {
            font-size: 2em;
            font-weight: bold;
            color: var(--secondary-color);
            margin: 10px 0;
        }

        .metric-label {
            color: var(--text-muted);
            font-size: 0.9em;
        }

        .insight-box {
            background: rgba(0, 200, 150, 0.05);
            border-left: 4px solid var(--secondary-color);
            padding: 20px;
            margin: 15px 0;
            border-radius: 4px;
        }

        .insight-box.medium {
            border-left-color: var(--warning-color);
            background: rgba(255, 184, 0, 0.05);
        }

        .chart {
            width: 100%%;
            border-radius: 8px;
            margin-top: 10px;
        }

        footer {
            text-align: center;
            padding: 30px;
            color: var(--text-muted);
            border-top: 1px solid var(--border-color);
            margin-top: 40px;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>🔌 Appliance Budget Report</h1>
            <div class="subtitle">Generated: %s</div>
            <div class="subtitle">User %d, period %d compared with period %d</div>
            <div class="subtitle" style="opacity: 0.7; font-size: 0.9em; margin-top: 10px;">appliancebudget %s</div>
        </header>
`,
		result.UserID,
		result.GeneratedAt.Format("Monday, 2 January 2006 at 15:04"),
		result.UserID,
		result.CurrentPeriod,
		result.PreviousPeriod,
		html.EscapeString(GetVersion()),
	)
}

func (r *HTMLReporter) writeHTMLSummary(w io.Writer, result *AnalysisResult) {
	savingsLabel := "Saved vs Last Period"
	if result.PeriodSavings < 0 {
		savingsLabel = "Spent More vs Last Period"
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📊 Summary</h2>

            <div class="metric-grid">
                <div class="metric-card">
                    <div class="metric-label">Current Period</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Predicted</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Previous Period</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">%s</div>
                    <div class="metric-value">%s</div>
                    <div class="metric-label">%s</div>
                </div>
            </div>
            <p class="metric-label">Random forest, %s scope, trained on %s records</p>
        </div>
`,
		r.money(result, result.CurrentPeriodTotal),
		r.money(result, result.PredictedTotal),
		r.money(result, result.PreviousPeriodTotal),
		savingsLabel,
		r.money(result, result.PeriodSavings),
		html.EscapeString(result.PeriodSavingsPct.String()),
		html.EscapeString(result.ForecastScope),
		humanize.Comma(int64(result.TrainingRecords)),
	)
}

func (r *HTMLReporter) writeHTMLApplianceCosts(w io.Writer, result *AnalysisResult) {
	if len(result.ApplianceCosts) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🔌 Cost per Appliance</h2>
            <table>
                <thead>
                    <tr>
                        <th>Appliance</th>
                        <th>Category</th>
                        <th>Actual</th>
                        <th>Predicted</th>
                        <th>Difference</th>
                    </tr>
                </thead>
                <tbody>
`)

	for _, c := range result.ApplianceCosts {
		fmt.Fprintf(w, `
                    <tr>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                    </tr>
`,
			html.EscapeString(c.Appliance),
			html.EscapeString(c.Category),
			r.money(result, c.Actual),
			r.money(result, c.Predicted),
			r.money(result, c.Actual-c.Predicted),
		)
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>
`)

	if result.ApplianceCostChart != "" {
		fmt.Fprintf(w, `
            <img class="chart" alt="Actual vs predicted cost per appliance" src="data:image/png;base64,%s">
`, result.ApplianceCostChart)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLRecommendations(w io.Writer, result *AnalysisResult) {
	if len(result.Recommendations) == 0 && len(result.Skipped) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>💡 Recommendations</h2>
`)

	for _, rec := range result.Recommendations {
		class := ""
		if rec.CanSave {
			class = " medium"
		}
		fmt.Fprintf(w, `
            <div class="insight-box%s">
                <p>%s</p>
            </div>
`,
			class,
			html.EscapeString(rec.Text),
		)
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, `
            <h3>⚠️ Not Analysed</h3>
            <ul>
`)
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "                <li><strong>%s:</strong> %s</li>\n",
				html.EscapeString(s.Appliance),
				html.EscapeString(s.Reason),
			)
		}
		fmt.Fprintf(w, `
            </ul>
`)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLCohort(w io.Writer, result *AnalysisResult) {
	cohort := result.Cohort
	if len(cohort.Totals) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>👥 Comparison with Other Users</h2>
            <p>Your spend of %s is the %s lowest of %d users. The cohort average is %s (%s vs average).</p>
            <table>
                <thead>
                    <tr>
                        <th>User</th>
                        <th>Total</th>
                    </tr>
                </thead>
                <tbody>
`,
		r.money(result, cohort.Target),
		humanize.Ordinal(cohort.Rank),
		len(cohort.Totals),
		r.money(result, cohort.CohortAverage),
		html.EscapeString(cohort.VsAverage.String()),
	)

	for _, t := range cohort.SortedTotals() {
		class := ""
		name := fmt.Sprintf("User %d", t.UserID)
		if t.UserID == cohort.TargetUserID {
			class = ` class="you"`
			name += " (you)"
		}
		fmt.Fprintf(w, "                    <tr%s><td>%s</td><td>%s</td></tr>\n",
			class, name, r.money(result, t.Total))
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>
`)

	if result.CohortChart != "" {
		fmt.Fprintf(w, `
            <img class="chart" alt="Spend compared with other users" src="data:image/png;base64,%s">
`, result.CohortChart)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLFooter(w io.Writer) {
	fmt.Fprintf(w, `
        <footer>
            <p><em>Predictions come from a model trained on your own previous periods and may differ from your actual bills.</em></p>
            <p style="margin-top: 10px;">Generated by <a href="https://github.com/matthewgall/appliancebudget" style="color: var(--primary-color); text-decoration: none;">appliancebudget</a></p>
        </footer>
    </div>
</body>
</html>
`)
}

func (r *HTMLReporter) money(result *AnalysisResult, v float64) string {
	return html.EscapeString(humanMoney(result.Currency, v))
}
