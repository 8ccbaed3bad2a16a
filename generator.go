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
	"fmt"
	"math/rand/v2"
)

// GeneratorOptions bounds the uniform draws made by the generator
type GeneratorOptions struct {
	TariffMin      float64 `yaml:"tariff_min"`
	TariffMax      float64 `yaml:"tariff_max"`
	UtilizationMin float64 `yaml:"utilization_min"`
	UtilizationMax float64 `yaml:"utilization_max"`
	BaselineMin    float64 `yaml:"baseline_min"` // Hours per period
	BaselineMax    float64 `yaml:"baseline_max"`
}

// DefaultGeneratorOptions returns the stock draw ranges
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		TariffMin:      0.3,
		TariffMax:      0.7,
		UtilizationMin: 0.1,
		UtilizationMax: 1.5,
		BaselineMin:    30,  // 1 hour a day over a 30 day period
		BaselineMax:    150, // 5 hours a day
	}
}

// Validate checks every range is ordered and prices are positive
func (o GeneratorOptions) Validate() error {
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"tariff", o.TariffMin, o.TariffMax},
		{"utilization", o.UtilizationMin, o.UtilizationMax},
		{"baseline", o.BaselineMin, o.BaselineMax},
	}

	for _, r := range ranges {
		if r.min <= 0 {
			return &ValidationError{Field: r.name + "_min", Value: fmt.Sprintf("%g", r.min), Message: "must be positive"}
		}
		if r.min > r.max {
			return &ValidationError{Field: r.name, Value: fmt.Sprintf("[%g, %g]", r.min, r.max), Message: "min must not exceed max"}
		}
	}

	return nil
}

// MaxGeneratedRecords caps a single Generate call
const MaxGeneratedRecords = 10_000_000

// Generator produces synthetic usage records from its own random source
type Generator struct {
	rng  *rand.Rand
	opts GeneratorOptions
}

// NewGenerator creates a generator seeded for reproducible output
func NewGenerator(seed uint64, opts GeneratorOptions) *Generator {
	return &Generator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		opts: opts,
	}
}

// Generate produces one record per (period, user, appliance).
// Baseline hours are drawn once per appliance before any period and shared by every user.
func (g *Generator) Generate(periodCount int, userIDs []int, catalog Catalog) ([]UsageRecord, error) {
	if periodCount <= 0 {
		return nil, &ValidationError{Field: "period_count", Value: fmt.Sprintf("%d", periodCount), Message: "must be positive"}
	}
	if len(userIDs) == 0 {
		return nil, &ValidationError{Field: "user_ids", Message: "at least one user is required"}
	}
	seen := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			return nil, &ValidationError{Field: "user_ids", Value: fmt.Sprintf("%d", id), Message: "duplicate user id"}
		}
		seen[id] = true
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if err := g.opts.Validate(); err != nil {
		return nil, err
	}

	perPeriod := len(userIDs) * len(catalog)
	if periodCount > MaxGeneratedRecords/perPeriod {
		return nil, &ValidationError{
			Field:   "period_count",
			Value:   fmt.Sprintf("%d", periodCount),
			Message: fmt.Sprintf("would produce more than %d records", MaxGeneratedRecords),
		}
	}

	baselines := g.resolveBaselines(catalog)

	records := make([]UsageRecord, 0, periodCount*perPeriod)
	for period := 1; period <= periodCount; period++ {
		for _, userID := range userIDs {
			tariff := g.uniform(g.opts.TariffMin, g.opts.TariffMax)
			for i, appliance := range catalog {
				utilization := g.uniform(g.opts.UtilizationMin, g.opts.UtilizationMax)
				energy := utilization * baselines[i]
				records = append(records, UsageRecord{
					UserID:            userID,
					Period:            period,
					Tariff:            tariff,
					ApplianceName:     appliance.Name,
					ApplianceCategory: appliance.Category,
					UsageHours:        baselines[i],
					EnergyConsumption: energy,
					Cost:              CalculateCost(energy, tariff),
				})
			}
		}
	}

	return records, nil
}

// resolveBaselines returns the catalog's baseline hours, drawing any that are unset
func (g *Generator) resolveBaselines(catalog Catalog) []float64 {
	baselines := make([]float64, len(catalog))
	for i, appliance := range catalog {
		if appliance.BaselineHours > 0 {
			baselines[i] = appliance.BaselineHours
			continue
		}
		baselines[i] = g.uniform(g.opts.BaselineMin, g.opts.BaselineMax)
	}
	return baselines
}

// uniform draws from [lo, hi)
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
