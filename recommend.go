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
	"math"
	"sort"
)

// Recommender turns actual, predicted and previous costs into guidance text
type Recommender struct {
	currency string
}

// NewRecommender creates a recommender that prints amounts with the given currency symbol
func NewRecommender(currency string) *Recommender {
	return &Recommender{currency: currency}
}

// Recommend builds the recommendation for one appliance.
// history holds the user's records; rows for other appliances are ignored.
func (r *Recommender) Recommend(userID int, appliance string, actual, predicted, previous float64, history []UsageRecord) (Recommendation, error) {
	swing, err := LargestSwing(history, appliance)
	if err != nil {
		return Recommendation{}, err
	}

	savings := actual - predicted
	relative := previous - actual

	rec := Recommendation{
		UserID:             userID,
		Appliance:          appliance,
		ActualCost:         actual,
		PredictedCost:      predicted,
		PreviousCost:       previous,
		Savings:            savings,
		SavingsPct:         NewPercentage(savings, actual),
		RelativeSavings:    relative,
		RelativeSavingsPct: NewPercentage(relative, previous),
		LargestSwing:       swing,
		CanSave:            savings > 0,
	}
	rec.Text = r.text(rec)

	return rec, nil
}

func (r *Recommender) text(rec Recommendation) string {
	relative := fmt.Sprintf("Compared with last period, you saved %s (%s).",
		r.money(rec.RelativeSavings), rec.RelativeSavingsPct)
	swing := fmt.Sprintf("Your biggest swing on the %s was period %d, a change of %s.",
		rec.Appliance, rec.LargestSwing.Period, r.money(rec.LargestSwing.Change))

	if rec.CanSave {
		return fmt.Sprintf("User %d: You can save %s (%s) on the %s by reducing usage or shifting it to off-peak hours. %s %s",
			rec.UserID, r.money(rec.Savings), rec.SavingsPct, rec.Appliance, relative, swing)
	}
	return fmt.Sprintf("User %d: Your %s usage is within the recommended range. Keep it up! %s %s",
		rec.UserID, rec.Appliance, relative, swing)
}

func (r *Recommender) money(v float64) string {
	return FormatMoney(r.currency, v)
}

// LargestSwing finds the period whose cost changed most from the period before it.
// The first period has no change and is skipped; ties go to the earliest period.
func LargestSwing(history []UsageRecord, appliance string) (Swing, error) {
	var rows []UsageRecord
	for _, h := range history {
		if h.ApplianceName == appliance {
			rows = append(rows, h)
		}
	}
	if len(rows) < 2 {
		return Swing{}, &DataError{
			DataType: "history",
			Message:  fmt.Sprintf("%s needs at least two periods of history, got %d", appliance, len(rows)),
			Err:      ErrInsufficientHistory,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Period < rows[j].Period
	})

	best := Swing{Period: rows[1].Period, Change: math.Abs(rows[1].Cost - rows[0].Cost)}
	for i := 2; i < len(rows); i++ {
		change := math.Abs(rows[i].Cost - rows[i-1].Cost)
		if change > best.Change {
			best = Swing{Period: rows[i].Period, Change: change}
		}
	}

	return best, nil
}

// PercentOf returns part as a percentage of base, or ErrUndefinedRatio when base is zero
func PercentOf(part, base float64) (float64, error) {
	if base == 0 {
		return 0, ErrUndefinedRatio
	}
	return part / base * 100, nil
}

// NewPercentage wraps PercentOf, marking a zero base as undefined
func NewPercentage(part, base float64) Percentage {
	v, err := PercentOf(part, base)
	if err != nil {
		return Percentage{}
	}
	return Percentage{Value: v, Valid: true}
}
