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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Database wraps the SQLite connection holding generated records
type Database struct {
	conn   *sql.DB
	path   string
	logger *Logger
}

// PeriodSummary aggregates one period across every user
type PeriodSummary struct {
	Period    int
	Users     int
	Records   int
	TotalCost float64
	AvgTariff float64
}

// OpenDatabase opens (or creates) the database and initializes the schema
func OpenDatabase(path string, logger *Logger) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Operation: "create_directory", Path: filepath.Dir(path), Err: err}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Operation: "open_database", Path: path, Err: err}
	}

	db := &Database{conn: conn, path: path, logger: logger}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, &StorageError{Operation: "init_schema", Path: path, Err: err}
	}

	logger.LogStorageOperation("open_database", path)
	return db, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		period INTEGER NOT NULL,
		tariff REAL NOT NULL,
		appliance_name TEXT NOT NULL,
		appliance_category TEXT NOT NULL,
		usage_hours REAL NOT NULL,
		energy_consumption REAL NOT NULL,
		cost REAL NOT NULL,
		UNIQUE(user_id, period, appliance_name)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_period ON usage_records(period);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertRecords inserts records in one transaction, ignoring duplicates.
// It returns the number of rows actually inserted.
func (db *Database) InsertRecords(ctx context.Context, records []UsageRecord) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertRecords(ctx, tx, records)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing records: %w", err)
	}

	db.logger.Debug("Records inserted", "path", db.path, "inserted", inserted, "offered", len(records))
	return inserted, nil
}

// ReplaceRecords swaps the stored data set for the given records atomically
func (db *Database) ReplaceRecords(ctx context.Context, records []UsageRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := insertRecords(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}

	db.logger.LogStorageOperation("replace_records", db.path)
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []UsageRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO usage_records
		(user_id, period, tariff, appliance_name, appliance_category, usage_hours, energy_consumption, cost)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.UserID, r.Period, r.Tariff, r.ApplianceName,
			r.ApplianceCategory, r.UsageHours, r.EnergyConsumption, r.Cost)
		if err != nil {
			return 0, fmt.Errorf("inserting record for user %d period %d: %w", r.UserID, r.Period, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	return inserted, nil
}

// ListRecords retrieves every record in insertion order
func (db *Database) ListRecords(ctx context.Context) ([]UsageRecord, error) {
	return db.queryRecords(ctx, `
	SELECT user_id, period, tariff, appliance_name, appliance_category, usage_hours, energy_consumption, cost
	FROM usage_records
	ORDER BY id
	`)
}

// ListUserRecords retrieves one user's records ordered by period
func (db *Database) ListUserRecords(ctx context.Context, userID int) ([]UsageRecord, error) {
	return db.queryRecords(ctx, `
	SELECT user_id, period, tariff, appliance_name, appliance_category, usage_hours, energy_consumption, cost
	FROM usage_records
	WHERE user_id = ?
	ORDER BY period, id
	`, userID)
}

func (db *Database) queryRecords(ctx context.Context, query string, args ...any) ([]UsageRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var results []UsageRecord
	for rows.Next() {
		var r UsageRecord
		if err := rows.Scan(&r.UserID, &r.Period, &r.Tariff, &r.ApplianceName,
			&r.ApplianceCategory, &r.UsageHours, &r.EnergyConsumption, &r.Cost); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// Summary aggregates the stored records per period
func (db *Database) Summary(ctx context.Context) ([]PeriodSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT period, COUNT(DISTINCT user_id), COUNT(*), SUM(cost), AVG(tariff)
	FROM usage_records
	GROUP BY period
	ORDER BY period
	`)
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	var results []PeriodSummary
	for rows.Next() {
		var s PeriodSummary
		if err := rows.Scan(&s.Period, &s.Users, &s.Records, &s.TotalCost, &s.AvgTariff); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		results = append(results, s)
	}

	return results, rows.Err()
}
