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

// CompareCohort totals cost per user over the current period's records and
// positions the target user within the cohort.
func CompareCohort(records []UsageRecord, targetUserID int) (CohortComparison, error) {
	index := make(map[int]int)
	var totals []UserTotal

	for _, r := range records {
		i, ok := index[r.UserID]
		if !ok {
			i = len(totals)
			index[r.UserID] = i
			totals = append(totals, UserTotal{UserID: r.UserID})
		}
		totals[i].Total += r.Cost
	}

	i, ok := index[targetUserID]
	if !ok {
		return CohortComparison{}, &DataError{
			DataType: "cohort",
			Message:  fmt.Sprintf("user %d has no records in the current period", targetUserID),
			Err:      ErrUserNotFound,
		}
	}
	target := totals[i].Total

	sum := 0.0
	rank := 1
	for _, t := range totals {
		sum += t.Total
		if t.Total < target {
			rank++
		}
	}
	average := sum / float64(len(totals))

	return CohortComparison{
		Totals:        totals,
		TargetUserID:  targetUserID,
		Target:        target,
		Rank:          rank,
		CohortAverage: average,
		VsAverage:     NewPercentage(target-average, average),
	}, nil
}

// TotalsByUser returns the per-user totals as a map
func (c CohortComparison) TotalsByUser() map[int]float64 {
	m := make(map[int]float64, len(c.Totals))
	for _, t := range c.Totals {
		m[t.UserID] = t.Total
	}
	return m
}

// SortedTotals returns the totals ordered by user id for display
func (c CohortComparison) SortedTotals() []UserTotal {
	sorted := append([]UserTotal(nil), c.Totals...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}
