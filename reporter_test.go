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
	"bytes"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysedResult(t *testing.T) *AnalysisResult {
	t.Helper()
	analyzer, _ := generatedAnalyzer(t)
	result, err := analyzer.Analyze(1, 0)
	require.NoError(t, err)
	return result
}

func TestWriteReport(t *testing.T) {
	result := analysedResult(t)

	var buf bytes.Buffer
	NewReporter(NewDiscardLogger()).WriteReport(&buf, result)
	report := buf.String()

	assert.True(t, strings.HasPrefix(report, "# Appliance Budget Report"))
	assert.Contains(t, report, "**User:** 1 | **Period:** 6 (compared with period 5)")
	assert.Contains(t, report, "trained on 25 records")
	for _, rec := range result.Recommendations {
		assert.Contains(t, report, rec.Text)
	}
	for _, c := range result.ApplianceCosts {
		assert.Contains(t, report, "| "+c.Appliance+" | "+c.Category+" |")
	}
	assert.Contains(t, report, "**1 (you)**")
	assert.Contains(t, report, "## 👥 Comparison with Other Users")
}

func TestWriteReportOrdersRecommendations(t *testing.T) {
	result := analysedResult(t)

	var buf bytes.Buffer
	NewReporter(NewDiscardLogger()).WriteReport(&buf, result)
	report := buf.String()

	last := -1
	for _, rec := range result.Recommendations {
		i := strings.Index(report, rec.Text)
		require.GreaterOrEqual(t, i, 0)
		assert.Greater(t, i, last)
		last = i
	}
}

func TestWriteReportSkipped(t *testing.T) {
	result := testResult(analysedResult(t).GeneratedAt)

	var buf bytes.Buffer
	NewReporter(NewDiscardLogger()).WriteReport(&buf, result)

	assert.Contains(t, buf.String(), "### ⚠️ Not Analysed")
	assert.Contains(t, buf.String(), "- **Lamp:** insufficient history")
	assert.Contains(t, buf.String(), "1st lowest of 2 users")
}

func TestWriteReportEscapesTableCells(t *testing.T) {
	result := testResult(analysedResult(t).GeneratedAt)
	result.ApplianceCosts = []ApplianceCost{
		{Appliance: "Washer|Dryer", Category: "Laundry|Utility", Actual: 10, Predicted: 8},
	}
	result.Recommendations[0].Text = "line one\nline | two"

	var buf bytes.Buffer
	NewReporter(NewDiscardLogger()).WriteReport(&buf, result)
	report := buf.String()

	assert.Contains(t, report, "| Washer\\|Dryer | Laundry\\|Utility | R$10.00 | R$8.00 | R$2.00 |")
	assert.Contains(t, report, "line one line \\| two")

	for _, line := range strings.Split(report, "\n") {
		if strings.Contains(line, "Washer") {
			unescaped := strings.ReplaceAll(line, "\\|", "")
			assert.Equal(t, 6, strings.Count(unescaped, "|"), "five columns need six pipes")
		}
	}
}

func TestGenerateReportToFile(t *testing.T) {
	result := analysedResult(t)
	path := filepath.Join(t.TempDir(), "report.md")

	require.NoError(t, NewReporter(NewDiscardLogger()).GenerateReport(result, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Appliance Budget Report")
}

func TestWriteHTMLReport(t *testing.T) {
	result := analysedResult(t)
	result.ApplianceCostChart = "QUJD"
	result.CohortChart = "REVG"

	var buf bytes.Buffer
	NewHTMLReporter(NewDiscardLogger()).WriteHTMLReport(&buf, result)
	page := buf.String()

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(page), "</html>"))
	assert.Contains(t, page, "<title>Appliance Budget Report - User 1</title>")
	for _, rec := range result.Recommendations {
		assert.Contains(t, page, html.EscapeString(rec.Text))
	}
	assert.Contains(t, page, `src="data:image/png;base64,QUJD"`)
	assert.Contains(t, page, `src="data:image/png;base64,REVG"`)
	assert.Contains(t, page, "User 1 (you)")
	assert.NotContains(t, page, "%!")
}

func TestWriteHTMLReportEscapes(t *testing.T) {
	result := testResult(analysedResult(t).GeneratedAt)
	result.ApplianceCosts[0].Appliance = "<script>"

	var buf bytes.Buffer
	NewHTMLReporter(NewDiscardLogger()).WriteHTMLReport(&buf, result)

	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
	assert.NotContains(t, buf.String(), "data:image/png")
}
