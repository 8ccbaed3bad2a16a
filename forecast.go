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
	"math/rand/v2"
)

const (
	// ScopePooled trains one model per user over every appliance
	ScopePooled = "pooled"

	// ScopePerAppliance trains one model per user and appliance
	ScopePerAppliance = "per_appliance"
)

// ForestOptions configures the random forest regressor
type ForestOptions struct {
	Trees           int    `yaml:"trees"`
	MaxDepth        int    `yaml:"max_depth"` // 0 = grow until leaves are pure
	MinSamplesSplit int    `yaml:"min_samples_split"`
	Seed            uint64 `yaml:"seed"`
}

// DefaultForestOptions mirrors a stock random forest regressor
func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		Trees:           100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// Validate checks the forest options
func (o ForestOptions) Validate() error {
	if o.Trees < 1 {
		return &ValidationError{Field: "forest.trees", Value: fmt.Sprintf("%d", o.Trees), Message: "at least one tree is required"}
	}
	if o.MaxDepth < 0 {
		return &ValidationError{Field: "forest.max_depth", Value: fmt.Sprintf("%d", o.MaxDepth), Message: "must not be negative"}
	}
	if o.MinSamplesSplit < 2 {
		return &ValidationError{Field: "forest.min_samples_split", Value: fmt.Sprintf("%d", o.MinSamplesSplit), Message: "must be at least 2"}
	}
	return nil
}

// ForecastModel predicts expected cost from usage features
type ForecastModel struct {
	forest          *randomForest
	trainingRecords int
}

// FitForecast trains a model on (usage hours, energy consumption) -> cost.
// The caller scopes training to a single user's prior periods.
func FitForecast(training []UsageRecord, opts ForestOptions) (*ForecastModel, error) {
	if len(training) == 0 {
		return nil, &DataError{
			DataType: "training",
			Message:  "at least one prior record is required to fit a forecast",
			Err:      ErrInsufficientData,
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	x := FeaturesOf(training)
	y := make([]float64, len(training))
	for i, r := range training {
		y[i] = r.Cost
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	return &ForecastModel{
		forest:          fitForest(x, y, opts, rng),
		trainingRecords: len(training),
	}, nil
}

// Predict returns one expected cost per feature row
func (m *ForecastModel) Predict(rows []Features) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.forest.predict(row)
	}
	return out
}

// TrainingRecords returns the number of records the model was fitted on
func (m *ForecastModel) TrainingRecords() int {
	return m.trainingRecords
}

// FeaturesOf extracts the regression features of each record
func FeaturesOf(records []UsageRecord) []Features {
	rows := make([]Features, len(records))
	for i, r := range records {
		rows[i] = Features{UsageHours: r.UsageHours, EnergyConsumption: r.EnergyConsumption}
	}
	return rows
}

// forecastPeriod predicts the cost of each of the user's current-period records.
// Predictions are aligned with current; the training count is returned for reporting.
func forecastPeriod(training, current []UsageRecord, scope string, opts ForestOptions) ([]float64, int, error) {
	switch scope {
	case ScopePerAppliance:
		predictions := make([]float64, len(current))
		for i, r := range current {
			var subset []UsageRecord
			for _, t := range training {
				if t.ApplianceName == r.ApplianceName {
					subset = append(subset, t)
				}
			}
			model, err := FitForecast(subset, opts)
			if err != nil {
				return nil, 0, fmt.Errorf("forecasting %s: %w", r.ApplianceName, err)
			}
			predictions[i] = model.Predict(FeaturesOf([]UsageRecord{r}))[0]
		}
		return predictions, len(training), nil

	case ScopePooled, "":
		model, err := FitForecast(training, opts)
		if err != nil {
			return nil, 0, err
		}
		return model.Predict(FeaturesOf(current)), model.TrainingRecords(), nil

	default:
		return nil, 0, &ValidationError{Field: "forecast_scope", Value: scope, Message: "must be pooled or per_appliance"}
	}
}
