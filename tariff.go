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
	"math"
)

// costTolerance is the relative tolerance allowed between a stored cost and energy x tariff
const costTolerance = 1e-9

// CalculateCost prices an energy amount at the given tariff
func CalculateCost(energy, tariff float64) float64 {
	// Calculate cost: consumption (kWh) × rate (currency/kWh)
	return energy * tariff
}

// CostMatchesTariff reports whether a record's cost equals its energy priced at its tariff
func CostMatchesTariff(r UsageRecord) bool {
	expected := CalculateCost(r.EnergyConsumption, r.Tariff)
	return approxEqual(r.Cost, expected, costTolerance)
}

// TotalCost sums the cost of the given records
func TotalCost(records []UsageRecord) float64 {
	total := 0.0
	for _, r := range records {
		total += r.Cost
	}
	return total
}

// approxEqual compares two values with a relative tolerance, falling back to absolute near zero
func approxEqual(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		return diff <= tol
	}
	return diff <= tol*scale
}
