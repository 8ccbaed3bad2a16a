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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UsageRecord is one row of usage and cost for a (user, period, appliance)
type UsageRecord struct {
	UserID            int     `json:"userId" yaml:"user_id"`
	Period            int     `json:"period" yaml:"period"`
	Tariff            float64 `json:"tariff" yaml:"tariff"` // Currency per kWh
	ApplianceName     string  `json:"applianceName" yaml:"appliance_name"`
	ApplianceCategory string  `json:"applianceCategory" yaml:"appliance_category"`
	UsageHours        float64 `json:"usageHours" yaml:"usage_hours"`               // Baseline hours per period
	EnergyConsumption float64 `json:"energyConsumption" yaml:"energy_consumption"` // kWh
	Cost              float64 `json:"cost" yaml:"cost"`                            // EnergyConsumption x Tariff
}

// Appliance is one entry of the appliance catalog
type Appliance struct {
	Name          string  `json:"name" yaml:"name"`
	Category      string  `json:"category" yaml:"category"`
	BaselineHours float64 `json:"baselineHours" yaml:"baseline_hours"` // 0 = drawn by the generator
}

// Catalog is the ordered set of appliances every household owns
type Catalog []Appliance

// DefaultCatalog returns the stock household appliances
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "Refrigerator", Category: "Essential"},
		{Name: "Air Conditioner", Category: "Comfort"},
		{Name: "Television", Category: "Entertainment"},
		{Name: "Microwave", Category: "Kitchen"},
		{Name: "Light Bulb", Category: "Lighting"},
	}
}

// Validate checks the catalog is non-empty and names are unique
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return &ValidationError{Field: "catalog", Message: "at least one appliance is required"}
	}

	seen := make(map[string]bool, len(c))
	for i, a := range c {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return &ValidationError{Field: fmt.Sprintf("catalog[%d].name", i), Message: "name is required"}
		}
		if seen[name] {
			return &ValidationError{Field: "catalog", Value: name, Message: "duplicate appliance name"}
		}
		if a.BaselineHours < 0 {
			return &ValidationError{Field: fmt.Sprintf("catalog[%d].baseline_hours", i), Message: "must not be negative"}
		}
		seen[name] = true
	}

	return nil
}

// Names returns appliance names in catalog order
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, a := range c {
		names[i] = a.Name
	}
	return names
}

// Features is the regression input for one record
type Features struct {
	UsageHours        float64 `json:"usageHours"`
	EnergyConsumption float64 `json:"energyConsumption"`
}

func (f Features) at(i int) float64 {
	if i == 0 {
		return f.UsageHours
	}
	return f.EnergyConsumption
}

const featureCount = 2

// Percentage is a ratio that may be undefined because its base was zero
type Percentage struct {
	Value float64
	Valid bool
}

// String formats the percentage, or "n/a" when undefined
func (p Percentage) String() string {
	if !p.Valid {
		return "n/a"
	}
	return FormatPercentage(p.Value)
}

// MarshalJSON encodes an undefined percentage as null
func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON decodes null as an undefined percentage
func (p *Percentage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Percentage{}
		return nil
	}
	if err := json.Unmarshal(data, &p.Value); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

// Swing is the period with the largest absolute period-over-period cost change
type Swing struct {
	Period int     `json:"period"`
	Change float64 `json:"change"`
}

// Recommendation is the engine's verdict for one appliance
type Recommendation struct {
	UserID             int        `json:"userId"`
	Appliance          string     `json:"appliance"`
	ActualCost         float64    `json:"actualCost"`
	PredictedCost      float64    `json:"predictedCost"`
	PreviousCost       float64    `json:"previousCost"`
	Savings            float64    `json:"savings"`
	SavingsPct         Percentage `json:"savingsPct"`
	RelativeSavings    float64    `json:"relativeSavings"`
	RelativeSavingsPct Percentage `json:"relativeSavingsPct"`
	LargestSwing       Swing      `json:"largestSwing"`
	CanSave            bool       `json:"canSave"`
	Text               string     `json:"text"`
}

// ApplianceCost pairs an appliance with its actual and predicted cost
type ApplianceCost struct {
	Appliance string  `json:"appliance"`
	Category  string  `json:"category"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// UserTotal is one user's total cost in a period
type UserTotal struct {
	UserID int     `json:"userId"`
	Total  float64 `json:"total"`
}

// CohortComparison positions one user's total against every user in the period
type CohortComparison struct {
	Totals        []UserTotal `json:"totals"` // First-appearance order
	TargetUserID  int         `json:"targetUserId"`
	Target        float64     `json:"target"`
	Rank          int         `json:"rank"` // 1 = lowest spend
	CohortAverage float64     `json:"cohortAverage"`
	VsAverage     Percentage  `json:"vsAverage"`
}

// SkippedAppliance records why an appliance got no recommendation
type SkippedAppliance struct {
	Appliance string `json:"appliance"`
	Reason    string `json:"reason"`
}

// AnalysisResult holds the complete analysis output for one user and period
type AnalysisResult struct {
	GeneratedAt         time.Time          `json:"generatedAt"`
	UserID              int                `json:"userId"`
	CurrentPeriod       int                `json:"currentPeriod"`
	PreviousPeriod      int                `json:"previousPeriod"`
	Currency            string             `json:"currency"`
	ForecastScope       string             `json:"forecastScope"`
	TrainingRecords     int                `json:"trainingRecords"`
	PreviousPeriodTotal float64            `json:"previousPeriodTotal"`
	CurrentPeriodTotal  float64            `json:"currentPeriodTotal"`
	PredictedTotal      float64            `json:"predictedTotal"`
	PeriodSavings       float64            `json:"periodOverPeriodSavings"` // Previous - current
	PeriodSavingsPct    Percentage         `json:"savingsPct"`
	ApplianceCosts      []ApplianceCost    `json:"applianceCosts"`
	Recommendations     []Recommendation   `json:"recommendations"`
	Skipped             []SkippedAppliance `json:"skipped,omitempty"`
	Cohort              CohortComparison   `json:"cohort"`
	// Charts (base64 encoded PNG images)
	ApplianceCostChart string `json:"applianceCostChart,omitempty"`
	CohortChart        string `json:"cohortChart,omitempty"`
}
