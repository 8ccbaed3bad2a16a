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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRecord builds a record priced at 0.5 so cost = energy x tariff holds exactly
func testRecord(user, period int, appliance string, cost float64) UsageRecord {
	return UsageRecord{
		UserID:            user,
		Period:            period,
		Tariff:            0.5,
		ApplianceName:     appliance,
		ApplianceCategory: "Test",
		UsageHours:        30,
		EnergyConsumption: cost * 2,
		Cost:              cost,
	}
}

func TestStoreQueries(t *testing.T) {
	records := []UsageRecord{
		testRecord(2, 2, "TV", 3),
		testRecord(1, 2, "TV", 2),
		testRecord(2, 1, "TV", 4),
		testRecord(1, 1, "TV", 1),
		testRecord(1, 3, "TV", 5),
	}
	store := NewStore(records)

	assert.Equal(t, 5, store.Len())
	assert.Equal(t, []int{2, 1}, store.Users())
	assert.Equal(t, []int{1, 2, 3}, store.Periods())
	assert.Equal(t, 3, store.LatestPeriod())

	assert.Len(t, store.ForUser(1), 3)
	assert.Len(t, store.ForPeriod(2), 2)
	assert.Equal(t, []UsageRecord{testRecord(1, 2, "TV", 2)}, store.ForUserPeriod(1, 2))

	training := store.TrainingSet(1, 3)
	require.Len(t, training, 2)
	for _, r := range training {
		assert.Less(t, r.Period, 3)
	}

	history := store.ApplianceHistory(1, "TV")
	require.Len(t, history, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{history[0].Period, history[1].Period, history[2].Period})
}

func TestStoreSnapshotIsolated(t *testing.T) {
	records := []UsageRecord{testRecord(1, 1, "TV", 1)}
	store := NewStore(records)

	records[0].Cost = 99
	assert.Equal(t, 1.0, store.Records()[0].Cost)

	out := store.Records()
	out[0].Cost = 42
	assert.Equal(t, 1.0, store.Records()[0].Cost)
}

func TestEmptyStore(t *testing.T) {
	store := NewStore(nil)
	assert.Equal(t, 0, store.LatestPeriod())
	assert.Empty(t, store.Users())
	assert.ErrorIs(t, store.Validate(), ErrInvalidArgument)
}

func TestStoreValidate(t *testing.T) {
	mispriced := testRecord(1, 2, "TV", 2)
	mispriced.Cost = 2.5

	retariffed := testRecord(1, 1, "Fridge", 1)
	retariffed.Tariff = 0.25
	retariffed.EnergyConsumption = 4

	tests := []struct {
		name    string
		records []UsageRecord
		wantErr bool
	}{
		{
			name: "valid",
			records: []UsageRecord{
				testRecord(1, 1, "TV", 1), testRecord(1, 1, "Fridge", 1),
				testRecord(1, 2, "TV", 2), testRecord(1, 2, "Fridge", 2),
				testRecord(2, 1, "TV", 3), testRecord(2, 1, "Fridge", 3),
			},
		},
		{
			name:    "cost does not match tariff",
			records: []UsageRecord{testRecord(1, 1, "TV", 1), mispriced},
			wantErr: true,
		},
		{
			name:    "two tariffs in one period",
			records: []UsageRecord{testRecord(1, 1, "TV", 1), retariffed},
			wantErr: true,
		},
		{
			name:    "duplicate appliance row",
			records: []UsageRecord{testRecord(1, 1, "TV", 1), testRecord(1, 1, "TV", 2)},
			wantErr: true,
		},
		{
			name: "appliance missing from a period",
			records: []UsageRecord{
				testRecord(1, 1, "TV", 1), testRecord(1, 1, "Fridge", 1),
				testRecord(1, 2, "TV", 2),
			},
			wantErr: true,
		},
		{
			name:    "gap in periods",
			records: []UsageRecord{testRecord(1, 1, "TV", 1), testRecord(1, 3, "TV", 2)},
			wantErr: true,
		},
		{
			name:    "period zero",
			records: []UsageRecord{testRecord(1, 0, "TV", 1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStore(tt.records).Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTotalCost(t *testing.T) {
	records := []UsageRecord{testRecord(1, 1, "TV", 1.5), testRecord(1, 1, "Fridge", 2.25)}
	assert.Equal(t, 3.75, TotalCost(records))
	assert.Equal(t, 0.0, TotalCost(nil))
}

func TestCostMatchesTariffTolerance(t *testing.T) {
	r := testRecord(1, 1, "TV", 1000)
	r.Cost += 1e-8
	assert.True(t, CostMatchesTariff(r))

	r.Cost += 1e-3
	assert.False(t, CostMatchesTariff(r))
}
