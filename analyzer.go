// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Analyzer runs the forecast and recommendation pipeline over a store snapshot
type Analyzer struct {
	store       *Store
	config      *Config
	logger      *Logger
	recommender *Recommender
	cache       *ForecastCache
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(store *Store, config *Config, logger *Logger) *Analyzer {
	return &Analyzer{
		store:       store,
		config:      config,
		logger:      logger.WithComponent("analyzer"),
		recommender: NewRecommender(config.Currency),
	}
}

// SetCache enables reuse of predictions for unchanged inputs
func (a *Analyzer) SetCache(cache *ForecastCache) {
	a.cache = cache
}

// Analyze forecasts and compares one user's costs for a period.
// A period of 0 selects the latest period in the store.
func (a *Analyzer) Analyze(userID, period int) (*AnalysisResult, error) {
	logger := a.logger.WithUser(userID)

	if period == 0 {
		period = a.store.LatestPeriod()
	}
	if !slices.Contains(a.store.Periods(), period) {
		return nil, &ValidationError{
			Field:   "period",
			Value:   fmt.Sprintf("%d", period),
			Message: fmt.Sprintf("period not found, data covers %s", periodRange(a.store.Periods())),
		}
	}
	logger.Info("Starting analysis", "period", period)

	current := a.store.ForUserPeriod(userID, period)
	if len(current) == 0 {
		return nil, &DataError{
			DataType: "usage",
			Message:  fmt.Sprintf("user %d has no records in period %d", userID, period),
			Err:      ErrUserNotFound,
		}
	}

	previousPeriod := period - 1
	previous := a.store.ForUserPeriod(userID, previousPeriod)
	if len(previous) == 0 {
		return nil, &DataError{
			DataType: "usage",
			Message:  fmt.Sprintf("user %d has no records in period %d to compare against", userID, previousPeriod),
			Err:      ErrInsufficientData,
		}
	}

	result := &AnalysisResult{
		GeneratedAt:    time.Now(),
		UserID:         userID,
		CurrentPeriod:  period,
		PreviousPeriod: previousPeriod,
		Currency:       a.config.Currency,
		ForecastScope:  a.config.ForecastScope,
	}

	// Forecast expected cost from prior periods only
	training := a.store.TrainingSet(userID, period)
	predictions, trained, err := a.forecast(training, current)
	if err != nil {
		return nil, fmt.Errorf("forecasting user %d period %d: %w", userID, period, err)
	}
	result.TrainingRecords = trained
	logger.LogAnalysisStage("forecast")

	result.CurrentPeriodTotal = TotalCost(current)
	result.PreviousPeriodTotal = TotalCost(previous)
	result.PeriodSavings = result.PreviousPeriodTotal - result.CurrentPeriodTotal
	result.PeriodSavingsPct = NewPercentage(result.PeriodSavings, result.PreviousPeriodTotal)

	for i, r := range current {
		result.PredictedTotal += predictions[i]
		result.ApplianceCosts = append(result.ApplianceCosts, ApplianceCost{
			Appliance: r.ApplianceName,
			Category:  r.ApplianceCategory,
			Actual:    r.Cost,
			Predicted: predictions[i],
		})
	}

	// Recommend per appliance; a failure only skips that appliance
	previousCost := make(map[string]float64, len(previous))
	for _, r := range previous {
		previousCost[r.ApplianceName] = r.Cost
	}
	for i, r := range current {
		prev, ok := previousCost[r.ApplianceName]
		if !ok {
			err := &DataError{
				DataType: "history",
				Message:  fmt.Sprintf("%s has no record in period %d", r.ApplianceName, previousPeriod),
				Err:      ErrInsufficientHistory,
			}
			a.skip(result, logger, r.ApplianceName, err)
			continue
		}

		history := a.applianceHistoryUpTo(userID, r.ApplianceName, period)
		rec, err := a.recommender.Recommend(userID, r.ApplianceName, r.Cost, predictions[i], prev, history)
		if err != nil {
			a.skip(result, logger, r.ApplianceName, err)
			continue
		}

		logger.LogRecommendation(rec.Appliance, rec.Savings, rec.CanSave)
		result.Recommendations = append(result.Recommendations, rec)
	}
	logger.LogAnalysisStage("recommendations")

	cohort, err := CompareCohort(a.store.ForPeriod(period), userID)
	if err != nil {
		return nil, err
	}
	result.Cohort = cohort
	logger.LogAnalysisStage("cohort_comparison")

	logger.Info("Analysis completed",
		"current_total", fmt.Sprintf("%.2f", result.CurrentPeriodTotal),
		"predicted_total", fmt.Sprintf("%.2f", result.PredictedTotal),
		"recommendations", len(result.Recommendations),
		"skipped", len(result.Skipped),
	)

	return result, nil
}

// AnalyzeCohort analyses every user in the store for the same period in parallel.
// Each user gets an independent model; results keep the store's user order.
func (a *Analyzer) AnalyzeCohort(ctx context.Context, period int) ([]*AnalysisResult, error) {
	users := a.store.Users()
	results := make([]*AnalysisResult, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.config.Parallelism, 1))

	for i, userID := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := a.Analyze(userID, period)
			if err != nil {
				return fmt.Errorf("analysing user %d: %w", userID, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("Cohort analysis completed", "users", len(users))
	return results, nil
}

// forecast predicts the current rows, consulting the cache when one is set
func (a *Analyzer) forecast(training, current []UsageRecord) ([]float64, int, error) {
	if a.cache == nil {
		return forecastPeriod(training, current, a.config.ForecastScope, a.config.Forest)
	}

	key := forecastKey(training, current, a.config.ForecastScope, a.config.Forest)
	if predictions, trained, ok := a.cache.Get(key); ok && len(predictions) == len(current) {
		return predictions, trained, nil
	}

	predictions, trained, err := forecastPeriod(training, current, a.config.ForecastScope, a.config.Forest)
	if err != nil {
		return nil, 0, err
	}
	if err := a.cache.Set(key, predictions, trained); err != nil {
		a.logger.Warn("Failed to cache forecast", "error", err)
	}
	return predictions, trained, nil
}

// applianceHistoryUpTo returns one appliance's records up to and including period
func (a *Analyzer) applianceHistoryUpTo(userID int, appliance string, period int) []UsageRecord {
	history := a.store.ApplianceHistory(userID, appliance)
	for i, r := range history {
		if r.Period > period {
			return history[:i]
		}
	}
	return history
}

func periodRange(periods []int) string {
	if len(periods) == 0 {
		return "no periods"
	}
	return fmt.Sprintf("periods %d to %d", periods[0], periods[len(periods)-1])
}

func (a *Analyzer) skip(result *AnalysisResult, logger *Logger, appliance string, err error) {
	logger.LogApplianceSkipped(appliance, err)
	reason := err.Error()
	if errors.Is(err, ErrInsufficientHistory) {
		reason = "insufficient history: " + reason
	}
	result.Skipped = append(result.Skipped, SkippedAppliance{Appliance: appliance, Reason: reason})
}

// FormatMoney formats an amount with the currency symbol, sign first
func FormatMoney(currency string, value float64) string {
	if value < 0 {
		return fmt.Sprintf("-%s%.2f", currency, math.Abs(value))
	}
	return fmt.Sprintf("%s%.2f", currency, value)
}

// FormatPercentage formats a value as a percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}
