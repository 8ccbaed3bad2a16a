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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsCSVRoundTrip(t *testing.T) {
	records := generateRecords(t, 42, 6)
	path := filepath.Join(t.TempDir(), "nested", "records.csv")

	require.NoError(t, SaveRecordsCSV(path, records))

	loaded, err := LoadRecordsCSV(path)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
	assert.NoError(t, NewStore(loaded).Validate())
}

func TestRecordsCSVRoundTripKeepsSpacesInNames(t *testing.T) {
	catalog := Catalog{
		{Name: " Lamp ", Category: " Lighting", BaselineHours: 20},
		{Name: "Fridge", Category: "Essential", BaselineHours: 40},
	}
	records, err := NewGenerator(7, DefaultGeneratorOptions()).Generate(2, []int{1}, catalog)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, records))

	loaded, err := ReadRecordsCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
	assert.Equal(t, " Lamp ", loaded[0].ApplianceName)
	assert.Equal(t, " Lighting", loaded[0].ApplianceCategory)
}

func TestWriteRecordsCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, []UsageRecord{testRecord(1, 2, "Light Bulb", 1.25)}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "user_id,period,tariff,appliance_name,appliance_category,usage_hours,energy_consumption,cost", lines[0])
	assert.Equal(t, "1,2,0.5,Light Bulb,Test,30,2.5,1.25", lines[1])
}

func TestReadRecordsCSVColumnOrder(t *testing.T) {
	input := "cost,appliance_name,user_id,period,tariff,appliance_category,usage_hours,energy_consumption\n" +
		"1.5,Microwave,3,2,0.5,Kitchen,40,3\n"

	records, err := ReadRecordsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, UsageRecord{
		UserID:            3,
		Period:            2,
		Tariff:            0.5,
		ApplianceName:     "Microwave",
		ApplianceCategory: "Kitchen",
		UsageHours:        40,
		EnergyConsumption: 3,
		Cost:              1.5,
	}, records[0])
}

func TestReadRecordsCSVErrors(t *testing.T) {
	header := strings.Join(csvHeader, ",") + "\n"

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "user_id,period,tariff\n1,1,0.5\n"},
		{"bad integer", header + "one,1,0.5,TV,Entertainment,30,10,5\n"},
		{"bad number", header + "1,1,cheap,TV,Entertainment,30,10,5\n"},
		{"short row", header + "1,1,0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecordsCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestLoadRecordsCSVMissingFile(t *testing.T) {
	_, err := LoadRecordsCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "open_file", storageErr.Operation)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func testResult(generatedAt time.Time) *AnalysisResult {
	return &AnalysisResult{
		GeneratedAt:         generatedAt,
		UserID:              2,
		CurrentPeriod:       6,
		PreviousPeriod:      5,
		Currency:            "R$",
		ForecastScope:       ScopePooled,
		TrainingRecords:     25,
		PreviousPeriodTotal: 90,
		CurrentPeriodTotal:  100,
		PredictedTotal:      80,
		PeriodSavings:       -10,
		PeriodSavingsPct:    NewPercentage(-10, 90),
		ApplianceCosts: []ApplianceCost{
			{Appliance: "Television", Category: "Entertainment", Actual: 100, Predicted: 80},
		},
		Recommendations: []Recommendation{{
			UserID:             2,
			Appliance:          "Television",
			ActualCost:         0,
			PredictedCost:      80,
			SavingsPct:         Percentage{},
			RelativeSavingsPct: NewPercentage(1, 3),
			LargestSwing:       Swing{Period: 2, Change: 20},
			Text:               "User 2: Your Television usage is within the recommended range.",
		}},
		Skipped: []SkippedAppliance{{Appliance: "Lamp", Reason: "insufficient history"}},
		Cohort: CohortComparison{
			Totals:        []UserTotal{{UserID: 1, Total: 150}, {UserID: 2, Total: 100}},
			TargetUserID:  2,
			Target:        100,
			Rank:          1,
			CohortAverage: 125,
			VsAverage:     NewPercentage(-25, 125),
		},
	}
}

func TestAnalysisResultRoundTrip(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), NewDiscardLogger())
	require.NoError(t, err)

	saved := testResult(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	path, err := storage.SaveAnalysisResult(saved)
	require.NoError(t, err)
	assert.Equal(t, "user2_period6_analysis_2025-03-01_09-30-00.json", filepath.Base(path))

	loaded, err := storage.LoadLatestAnalysis(2)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.True(t, saved.GeneratedAt.Equal(loaded.GeneratedAt))
	loaded.GeneratedAt = saved.GeneratedAt
	assert.Equal(t, saved, loaded)
}

func TestLoadLatestAnalysisPicksNewest(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), NewDiscardLogger())
	require.NoError(t, err)

	older := testResult(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	older.CurrentPeriod = 9
	newer := testResult(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
	newer.CurrentPeriod = 3

	_, err = storage.SaveAnalysisResult(older)
	require.NoError(t, err)
	_, err = storage.SaveAnalysisResult(newer)
	require.NoError(t, err)

	latest, err := storage.LoadLatestAnalysis(2)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.CurrentPeriod)

	none, err := storage.LoadLatestAnalysis(7)
	require.NoError(t, err)
	assert.Nil(t, none)

	files, err := storage.ListStoredFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestStorageSaveRecords(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(dir, NewDiscardLogger())
	require.NoError(t, err)

	records := []UsageRecord{testRecord(1, 1, "TV", 2)}
	path, err := storage.SaveRecords("records.csv", records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "records.csv"), path)

	loaded, err := LoadRecordsCSV(path)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}
