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
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// csvHeader is the column order of the delimited record format
var csvHeader = []string{
	"user_id", "period", "tariff", "appliance_name", "appliance_category",
	"usage_hours", "energy_consumption", "cost",
}

// Storage handles persistent storage of records and analysis results
type Storage struct {
	basePath string
	logger   *Logger
}

// NewStorage creates a new storage handler rooted at basePath
func NewStorage(basePath string, logger *Logger) (*Storage, error) {
	// Ensure storage directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{
			Operation: "create_directory",
			Path:      basePath,
			Err:       err,
		}
	}

	logger.Debug("Storage initialized", "path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger,
	}, nil
}

// SaveAnalysisResult saves an analysis result
func (s *Storage) SaveAnalysisResult(result *AnalysisResult) (string, error) {
	filename := fmt.Sprintf("user%d_period%d_analysis_%s.json",
		result.UserID, result.CurrentPeriod, result.GeneratedAt.Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.basePath, filename)

	s.logger.LogStorageOperation("save_analysis", path)

	return path, s.saveJSON(path, result)
}

// LoadLatestAnalysis loads the most recent analysis result for the given user
func (s *Storage) LoadLatestAnalysis(userID int) (*AnalysisResult, error) {
	pattern := filepath.Join(s.basePath, fmt.Sprintf("user%d_period*_analysis_*.json", userID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &StorageError{
			Operation: "glob_analysis",
			Path:      pattern,
			Err:       err,
		}
	}

	if len(matches) == 0 {
		return nil, nil // No previous analysis found
	}

	// Pick the newest by the timestamp suffix, not by the period in the name
	latestFile := matches[0]
	for _, m := range matches[1:] {
		if analysisStamp(m) > analysisStamp(latestFile) {
			latestFile = m
		}
	}

	s.logger.LogStorageOperation("load_latest_analysis", latestFile)

	var result AnalysisResult
	if err := s.loadJSON(latestFile, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func analysisStamp(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "_analysis_"); i >= 0 {
		return base[i:]
	}
	return base
}

// SaveRecords writes records as CSV into the storage directory
func (s *Storage) SaveRecords(name string, records []UsageRecord) (string, error) {
	path := filepath.Join(s.basePath, name)
	s.logger.LogStorageOperation("save_records", path)
	return path, SaveRecordsCSV(path, records)
}

// saveJSON saves data as JSON to a file
func (s *Storage) saveJSON(path string, data interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return &StorageError{
			Operation: "create_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(data); err != nil {
		return &StorageError{
			Operation: "encode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// loadJSON loads data from a JSON file
func (s *Storage) loadJSON(path string, target interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return &StorageError{
			Operation: "open_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return &StorageError{
			Operation: "decode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// ListStoredFiles lists all files in the storage directory
func (s *Storage) ListStoredFiles() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, &StorageError{
			Operation: "list_directory",
			Path:      s.basePath,
			Err:       err,
		}
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

// SaveRecordsCSV writes records to a CSV file, creating parent directories
func SaveRecordsCSV(path string, records []UsageRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{Operation: "create_directory", Path: filepath.Dir(path), Err: err}
	}

	file, err := os.Create(path)
	if err != nil {
		return &StorageError{Operation: "create_file", Path: path, Err: err}
	}
	defer file.Close()

	if err := WriteRecordsCSV(file, records); err != nil {
		return &StorageError{Operation: "write_csv", Path: path, Err: err}
	}

	return nil
}

// LoadRecordsCSV reads records from a CSV file
func LoadRecordsCSV(path string) ([]UsageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Operation: "open_file", Path: path, Err: err}
	}
	defer file.Close()

	records, err := ReadRecordsCSV(file)
	if err != nil {
		return nil, &StorageError{Operation: "read_csv", Path: path, Err: err}
	}

	return records, nil
}

// WriteRecordsCSV writes the header row then one row per record.
// Floats use the shortest exact representation so a read back is lossless.
func WriteRecordsCSV(w io.Writer, records []UsageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.UserID),
			strconv.Itoa(r.Period),
			formatFloat(r.Tariff),
			r.ApplianceName,
			r.ApplianceCategory,
			formatFloat(r.UsageHours),
			formatFloat(r.EnergyConsumption),
			formatFloat(r.Cost),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadRecordsCSV parses records written by WriteRecordsCSV.
// Columns are matched by header name, so column order may differ.
func ReadRecordsCSV(r io.Reader) ([]UsageRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Field: "csv", Message: "missing header row"}
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range csvHeader {
		if _, ok := cols[name]; !ok {
			return nil, &ValidationError{Field: "csv", Value: name, Message: "missing column"}
		}
	}

	var records []UsageRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		if len(row) < len(header) {
			return nil, &ValidationError{Field: fmt.Sprintf("csv line %d", line), Message: "too few fields"}
		}

		p := rowParser{row: row, cols: cols, line: line}
		rec := UsageRecord{
			UserID:            p.integer("user_id"),
			Period:            p.integer("period"),
			Tariff:            p.number("tariff"),
			ApplianceName:     p.text("appliance_name"),
			ApplianceCategory: p.text("appliance_category"),
			UsageHours:        p.number("usage_hours"),
			EnergyConsumption: p.number("energy_consumption"),
			Cost:              p.number("cost"),
		}
		if p.err != nil {
			return nil, p.err
		}
		records = append(records, rec)
	}

	return records, nil
}

// rowParser converts named CSV fields, keeping the first error
type rowParser struct {
	row  []string
	cols map[string]int
	line int
	err  error
}

// text returns the field verbatim; names may carry meaningful spaces
func (p *rowParser) text(name string) string {
	return p.row[p.cols[name]]
}

func (p *rowParser) integer(name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(p.text(name)))
	if err != nil && p.err == nil {
		p.err = &ValidationError{Field: fmt.Sprintf("csv line %d %s", p.line, name), Value: p.text(name), Message: "not an integer"}
	}
	return v
}

func (p *rowParser) number(name string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.text(name)), 64)
	if err != nil && p.err == nil {
		p.err = &ValidationError{Field: fmt.Sprintf("csv line %d %s", p.line, name), Value: p.text(name), Message: "not a number"}
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
