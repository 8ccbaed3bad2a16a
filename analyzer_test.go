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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Forest = smallForest()
	cfg.StoragePath = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func generatedAnalyzer(t *testing.T) (*Analyzer, *Store) {
	t.Helper()
	store := NewStore(generateRecords(t, 42, 6))
	return NewAnalyzer(store, testConfig(t), NewDiscardLogger()), store
}

func TestAnalyzeLatestPeriod(t *testing.T) {
	analyzer, store := generatedAnalyzer(t)

	result, err := analyzer.Analyze(1, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.UserID)
	assert.Equal(t, 6, result.CurrentPeriod)
	assert.Equal(t, 5, result.PreviousPeriod)
	assert.Equal(t, "R$", result.Currency)
	assert.Equal(t, ScopePooled, result.ForecastScope)
	assert.Equal(t, 5*5, result.TrainingRecords)

	current := store.ForUserPeriod(1, 6)
	previous := store.ForUserPeriod(1, 5)
	assert.InDelta(t, TotalCost(current), result.CurrentPeriodTotal, 1e-9)
	assert.InDelta(t, TotalCost(previous), result.PreviousPeriodTotal, 1e-9)
	assert.InDelta(t, result.PreviousPeriodTotal-result.CurrentPeriodTotal, result.PeriodSavings, 1e-9)
	assert.True(t, result.PeriodSavingsPct.Valid)

	require.Len(t, result.ApplianceCosts, 5)
	predicted := 0.0
	for i, c := range result.ApplianceCosts {
		assert.Equal(t, current[i].ApplianceName, c.Appliance)
		assert.Equal(t, current[i].Cost, c.Actual)
		assert.Greater(t, c.Predicted, 0.0)
		predicted += c.Predicted
	}
	assert.InDelta(t, predicted, result.PredictedTotal, 1e-9)

	require.Len(t, result.Recommendations, 5)
	assert.Empty(t, result.Skipped)
	for i, rec := range result.Recommendations {
		assert.Equal(t, result.ApplianceCosts[i].Appliance, rec.Appliance)
		assert.Equal(t, rec.ActualCost > rec.PredictedCost, rec.CanSave)
		assert.Equal(t, previous[i].Cost, rec.PreviousCost)
		assert.LessOrEqual(t, rec.LargestSwing.Period, 6)
		assert.GreaterOrEqual(t, rec.LargestSwing.Period, 2)
	}

	assert.Len(t, result.Cohort.Totals, 5)
	assert.Equal(t, 1, result.Cohort.TargetUserID)
	assert.InDelta(t, result.CurrentPeriodTotal, result.Cohort.Target, 1e-9)
}

func TestAnalyzeEarlierPeriodIgnoresLaterData(t *testing.T) {
	analyzer, _ := generatedAnalyzer(t)

	result, err := analyzer.Analyze(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2*5, result.TrainingRecords)
	for _, rec := range result.Recommendations {
		assert.LessOrEqual(t, rec.LargestSwing.Period, 3)
	}
}

func TestApplianceHistoryUpTo(t *testing.T) {
	store := NewStore([]UsageRecord{
		testRecord(1, 3, "Fridge", 30),
		testRecord(1, 1, "Fridge", 10),
		testRecord(1, 2, "Fridge", 20),
		testRecord(1, 2, "Lamp", 5),
		testRecord(2, 2, "Fridge", 99),
	})
	analyzer := NewAnalyzer(store, testConfig(t), NewDiscardLogger())

	history := analyzer.applianceHistoryUpTo(1, "Fridge", 2)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Period)
	assert.Equal(t, 2, history[1].Period)
	assert.Equal(t, 20.0, history[1].Cost)

	assert.Len(t, analyzer.applianceHistoryUpTo(1, "Fridge", 3), 3)
	assert.Empty(t, analyzer.applianceHistoryUpTo(1, "Fridge", 0))
}

func TestAnalyzeDeterministic(t *testing.T) {
	analyzer, _ := generatedAnalyzer(t)

	first, err := analyzer.Analyze(4, 0)
	require.NoError(t, err)
	second, err := analyzer.Analyze(4, 0)
	require.NoError(t, err)

	assert.Equal(t, first.ApplianceCosts, second.ApplianceCosts)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestAnalyzeErrors(t *testing.T) {
	analyzer, _ := generatedAnalyzer(t)

	_, err := analyzer.Analyze(99, 0)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = analyzer.Analyze(1, 7)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "period", verr.Field)
	assert.Contains(t, verr.Message, "periods 1 to 6")

	_, err = NewAnalyzer(NewStore(nil), testConfig(t), NewDiscardLogger()).Analyze(1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = analyzer.Analyze(1, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeSkipsApplianceWithoutHistory(t *testing.T) {
	store := NewStore([]UsageRecord{
		testRecord(1, 1, "Fridge", 10),
		testRecord(1, 2, "Fridge", 12),
		testRecord(1, 3, "Fridge", 11),
		testRecord(1, 3, "Lamp", 3),
	})
	analyzer := NewAnalyzer(store, testConfig(t), NewDiscardLogger())

	result, err := analyzer.Analyze(1, 3)
	require.NoError(t, err)

	assert.Len(t, result.ApplianceCosts, 2)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Fridge", result.Recommendations[0].Appliance)
	assert.Equal(t, Swing{Period: 2, Change: 2}, result.Recommendations[0].LargestSwing)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Lamp", result.Skipped[0].Appliance)
	assert.Contains(t, result.Skipped[0].Reason, "insufficient history")
}

func TestAnalyzePerApplianceScope(t *testing.T) {
	store := NewStore(generateRecords(t, 42, 6))
	cfg := testConfig(t)
	cfg.ForecastScope = ScopePerAppliance

	result, err := NewAnalyzer(store, cfg, NewDiscardLogger()).Analyze(3, 0)
	require.NoError(t, err)
	assert.Equal(t, ScopePerAppliance, result.ForecastScope)
	assert.Len(t, result.ApplianceCosts, 5)
}

func TestAnalyzeCohort(t *testing.T) {
	analyzer, store := generatedAnalyzer(t)

	results, err := analyzer.AnalyzeCohort(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, len(store.Users()))

	for i, userID := range store.Users() {
		assert.Equal(t, userID, results[i].UserID)

		single, err := analyzer.Analyze(userID, 0)
		require.NoError(t, err)
		assert.Equal(t, single.ApplianceCosts, results[i].ApplianceCosts)
		assert.Equal(t, single.Cohort.Rank, results[i].Cohort.Rank)
	}
}

func TestAnalyzeCohortErrors(t *testing.T) {
	analyzer, _ := generatedAnalyzer(t)

	_, err := analyzer.AnalyzeCohort(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInsufficientData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = analyzer.AnalyzeCohort(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeUsesForecastCache(t *testing.T) {
	analyzer, _ := generatedAnalyzer(t)
	cache, err := NewForecastCache(t.TempDir(), time.Hour, NewDiscardLogger())
	require.NoError(t, err)
	analyzer.SetCache(cache)

	first, err := analyzer.Analyze(1, 0)
	require.NoError(t, err)
	total, _ := cache.Stats()
	assert.Equal(t, 1, total)

	second, err := analyzer.Analyze(1, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ApplianceCosts, second.ApplianceCosts)
	assert.Equal(t, first.TrainingRecords, second.TrainingRecords)

	total, _ = cache.Stats()
	assert.Equal(t, 1, total)
}
