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
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator handles chart generation
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme: "dark", // Match our HTML report dark theme
	}
}

// ApplianceCostChart renders actual against predicted cost per appliance
func (cg *ChartGenerator) ApplianceCostChart(result *AnalysisResult) ([]byte, error) {
	if len(result.ApplianceCosts) == 0 {
		return nil, fmt.Errorf("no appliance costs available")
	}

	var labels []string
	var actual, predicted []float64
	for _, c := range result.ApplianceCosts {
		labels = append(labels, c.Appliance)
		actual = append(actual, c.Actual)
		predicted = append(predicted, c.Predicted)
	}

	p, err := charts.BarRender(
		[][]float64{actual, predicted},
		charts.TitleTextOptionFunc(
			"Actual vs Predicted Cost per Appliance",
			fmt.Sprintf("User %d, period %d (%s)", result.UserID, result.CurrentPeriod, result.Currency),
		),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Actual", "Predicted"}, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(500),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render appliance chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return buf, nil
}

// CohortChart renders every user's total with the target user's bar as its own series
func (cg *ChartGenerator) CohortChart(result *AnalysisResult) ([]byte, error) {
	totals := result.Cohort.SortedTotals()
	if len(totals) == 0 {
		return nil, fmt.Errorf("no cohort totals available")
	}

	var labels []string
	var others, target []float64
	for _, t := range totals {
		labels = append(labels, "User "+strconv.Itoa(t.UserID))
		if t.UserID == result.Cohort.TargetUserID {
			others = append(others, 0)
			target = append(target, t.Total)
			continue
		}
		others = append(others, t.Total)
		target = append(target, 0)
	}

	p, err := charts.BarRender(
		[][]float64{others, target},
		charts.TitleTextOptionFunc(
			"Spend Compared with Other Users",
			fmt.Sprintf("Period %d (%s)", result.CurrentPeriod, result.Currency),
		),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Other users", "Your spend"}, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render cohort chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return buf, nil
}

// EmbedCharts renders both charts into the result as base64 PNG for the HTML report
func (cg *ChartGenerator) EmbedCharts(result *AnalysisResult) error {
	appliance, err := cg.ApplianceCostChart(result)
	if err != nil {
		return err
	}
	cohort, err := cg.CohortChart(result)
	if err != nil {
		return err
	}

	result.ApplianceCostChart = base64.StdEncoding.EncodeToString(appliance)
	result.CohortChart = base64.StdEncoding.EncodeToString(cohort)
	return nil
}

// WriteCharts renders both charts as PNG files into dir and returns their paths
func (cg *ChartGenerator) WriteCharts(result *AnalysisResult, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Operation: "create_directory", Path: dir, Err: err}
	}

	renders := []struct {
		name   string
		render func(*AnalysisResult) ([]byte, error)
	}{
		{fmt.Sprintf("user%d_period%d_appliances.png", result.UserID, result.CurrentPeriod), cg.ApplianceCostChart},
		{fmt.Sprintf("user%d_period%d_cohort.png", result.UserID, result.CurrentPeriod), cg.CohortChart},
	}

	var paths []string
	for _, r := range renders {
		buf, err := r.render(result)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, r.name)
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return nil, &StorageError{Operation: "write_chart", Path: path, Err: err}
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// getTheme returns the chart theme name
func (cg *ChartGenerator) getTheme() string {
	return cg.theme
}
