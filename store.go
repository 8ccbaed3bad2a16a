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
	"sort"
)

// Store is an immutable snapshot of generated usage records.
// It is safe for concurrent reads; every query returns a fresh slice.
type Store struct {
	records []UsageRecord
	users   []int
	periods []int
}

// NewStore snapshots the given records
func NewStore(records []UsageRecord) *Store {
	s := &Store{records: make([]UsageRecord, len(records))}
	copy(s.records, records)

	seenUser := make(map[int]bool)
	seenPeriod := make(map[int]bool)
	for _, r := range s.records {
		if !seenUser[r.UserID] {
			seenUser[r.UserID] = true
			s.users = append(s.users, r.UserID)
		}
		if !seenPeriod[r.Period] {
			seenPeriod[r.Period] = true
			s.periods = append(s.periods, r.Period)
		}
	}
	sort.Ints(s.periods)

	return s
}

// Len returns the number of records
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of every record
func (s *Store) Records() []UsageRecord {
	return s.filter(func(UsageRecord) bool { return true })
}

// Users returns user ids in first-appearance order
func (s *Store) Users() []int {
	return append([]int(nil), s.users...)
}

// Periods returns the distinct periods in ascending order
func (s *Store) Periods() []int {
	return append([]int(nil), s.periods...)
}

// LatestPeriod returns the highest period, or 0 when empty
func (s *Store) LatestPeriod() int {
	if len(s.periods) == 0 {
		return 0
	}
	return s.periods[len(s.periods)-1]
}

// ForUser returns every record for a user
func (s *Store) ForUser(userID int) []UsageRecord {
	return s.filter(func(r UsageRecord) bool { return r.UserID == userID })
}

// ForPeriod returns every user's records for a period
func (s *Store) ForPeriod(period int) []UsageRecord {
	return s.filter(func(r UsageRecord) bool { return r.Period == period })
}

// ForUserPeriod returns one user's records for one period
func (s *Store) ForUserPeriod(userID, period int) []UsageRecord {
	return s.filter(func(r UsageRecord) bool { return r.UserID == userID && r.Period == period })
}

// TrainingSet returns a user's records from periods before currentPeriod
func (s *Store) TrainingSet(userID, currentPeriod int) []UsageRecord {
	return s.filter(func(r UsageRecord) bool { return r.UserID == userID && r.Period < currentPeriod })
}

// ApplianceHistory returns a user's records for one appliance ordered by period
func (s *Store) ApplianceHistory(userID int, appliance string) []UsageRecord {
	var history []UsageRecord
	for _, r := range s.ForUser(userID) {
		if r.ApplianceName == appliance {
			history = append(history, r)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Period < history[j].Period
	})
	return history
}

func (s *Store) filter(keep func(UsageRecord) bool) []UsageRecord {
	var out []UsageRecord
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

type userPeriod struct {
	userID int
	period int
}

// Validate checks the record invariants: cost = energy x tariff, one tariff and one row
// per appliance for every (user, period), the same appliance set everywhere, and
// contiguous periods from 1 for each user.
func (s *Store) Validate() error {
	if len(s.records) == 0 {
		return &ValidationError{Field: "records", Message: "store is empty"}
	}

	tariffs := make(map[userPeriod]float64)
	appliances := make(map[userPeriod]map[string]bool)
	userPeriods := make(map[int]map[int]bool)
	var catalog map[string]bool

	for i, r := range s.records {
		if !CostMatchesTariff(r) {
			return &ValidationError{
				Field:   fmt.Sprintf("records[%d].cost", i),
				Value:   fmt.Sprintf("%g", r.Cost),
				Message: fmt.Sprintf("cost does not equal energy_consumption x tariff (%g)", CalculateCost(r.EnergyConsumption, r.Tariff)),
			}
		}
		if r.Period < 1 {
			return &ValidationError{Field: fmt.Sprintf("records[%d].period", i), Value: fmt.Sprintf("%d", r.Period), Message: "periods start at 1"}
		}

		key := userPeriod{r.UserID, r.Period}
		if t, ok := tariffs[key]; ok && t != r.Tariff {
			return &ValidationError{
				Field:   fmt.Sprintf("records[%d].tariff", i),
				Value:   fmt.Sprintf("%g", r.Tariff),
				Message: fmt.Sprintf("user %d period %d already priced at %g", r.UserID, r.Period, t),
			}
		}
		tariffs[key] = r.Tariff

		if appliances[key] == nil {
			appliances[key] = make(map[string]bool)
		}
		if appliances[key][r.ApplianceName] {
			return &ValidationError{
				Field:   fmt.Sprintf("records[%d].appliance_name", i),
				Value:   r.ApplianceName,
				Message: fmt.Sprintf("duplicate row for user %d period %d", r.UserID, r.Period),
			}
		}
		appliances[key][r.ApplianceName] = true

		if userPeriods[r.UserID] == nil {
			userPeriods[r.UserID] = make(map[int]bool)
		}
		userPeriods[r.UserID][r.Period] = true
	}

	for key, set := range appliances {
		if catalog == nil {
			catalog = set
			continue
		}
		if !sameKeys(catalog, set) {
			return &ValidationError{
				Field:   "records",
				Message: fmt.Sprintf("user %d period %d does not carry the full appliance catalog", key.userID, key.period),
			}
		}
	}

	for userID, periods := range userPeriods {
		for p := 1; p <= len(periods); p++ {
			if !periods[p] {
				return &ValidationError{
					Field:   "records",
					Message: fmt.Sprintf("user %d periods are not contiguous from 1 (missing %d)", userID, p),
				}
			}
		}
	}

	return nil
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
