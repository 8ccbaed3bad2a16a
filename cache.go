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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheEntry holds one cached forecast with expiration
type CacheEntry struct {
	Predictions     []float64 `json:"predictions"`
	TrainingRecords int       `json:"training_records"`
	CachedAt        time.Time `json:"cached_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// CacheStore is the on-disk layout of the forecast cache
type CacheStore struct {
	Entries map[string]*CacheEntry `json:"entries"`
}

// ForecastCache keeps predictions keyed by a fingerprint of their inputs,
// so an unchanged data set is not refitted on every run
type ForecastCache struct {
	filePath string
	ttl      time.Duration
	store    *CacheStore
	mutex    sync.RWMutex
	logger   *Logger
}

// NewForecastCache opens (or starts) the cache file under basePath
func NewForecastCache(basePath string, ttl time.Duration, logger *Logger) (*ForecastCache, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{Operation: "create_directory", Path: basePath, Err: err}
	}

	cache := &ForecastCache{
		filePath: filepath.Join(basePath, "forecast_cache.json"),
		ttl:      ttl,
		store:    &CacheStore{Entries: make(map[string]*CacheEntry)},
		logger:   logger.WithComponent("cache"),
	}

	// Load existing cache from file
	if err := cache.load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to load forecast cache, starting fresh", "error", err)
		}
	}

	// Clean expired entries on startup
	if err := cache.cleanExpired(); err != nil {
		return nil, err
	}

	cache.logger.Debug("Cache initialized", "path", cache.filePath, "entries", len(cache.store.Entries))

	return cache, nil
}

// Set stores predictions under key for the cache TTL
func (c *ForecastCache) Set(key string, predictions []float64, trainingRecords int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.store.Entries[key] = &CacheEntry{
		Predictions:     append([]float64(nil), predictions...),
		TrainingRecords: trainingRecords,
		CachedAt:        now,
		ExpiresAt:       now.Add(c.ttl),
	}

	if err := c.save(); err != nil {
		return err
	}

	c.logger.Debug("Cache set", "key", key[:12], "ttl", c.ttl)
	return nil
}

// Get returns the cached predictions for key if present and not expired
func (c *ForecastCache) Get(key string) ([]float64, int, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.store.Entries[key]
	if !exists {
		c.logger.Debug("Cache miss", "key", key[:12])
		return nil, 0, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.logger.Debug("Cache expired", "key", key[:12])
		return nil, 0, false
	}

	c.logger.Debug("Cache hit", "key", key[:12], "expires_in", time.Until(entry.ExpiresAt).Round(time.Second))
	return append([]float64(nil), entry.Predictions...), entry.TrainingRecords, true
}

// Clear removes every entry
func (c *ForecastCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := len(c.store.Entries)
	c.store.Entries = make(map[string]*CacheEntry)

	if err := c.save(); err != nil {
		return err
	}

	c.logger.Info("Cleared forecast cache", "count", count)
	return nil
}

// Stats returns the number of entries and how many of them have expired
func (c *ForecastCache) Stats() (total int, expired int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	total = len(c.store.Entries)
	for _, entry := range c.store.Entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return total, expired
}

// cleanExpired removes expired entries (must be called with lock held or before sharing)
func (c *ForecastCache) cleanExpired() error {
	now := time.Now()
	removed := 0

	for key, entry := range c.store.Entries {
		if now.After(entry.ExpiresAt) {
			delete(c.store.Entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Info("Cleaned expired cache entries", "count", removed)
		return c.save()
	}

	return nil
}

// load reads the cache from disk
func (c *ForecastCache) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c.store); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if c.store.Entries == nil {
		c.store.Entries = make(map[string]*CacheEntry)
	}

	return nil
}

// save writes the cache to disk
func (c *ForecastCache) save() error {
	data, err := json.MarshalIndent(c.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return &StorageError{Operation: "write_cache", Path: c.filePath, Err: err}
	}

	return nil
}

// forecastKey fingerprints everything a forecast depends on
func forecastKey(training, current []UsageRecord, scope string, opts ForestOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%d\n", scope, opts.Trees, opts.MaxDepth, opts.MinSamplesSplit, opts.Seed)
	for _, set := range [][]UsageRecord{training, current} {
		for _, r := range set {
			fmt.Fprintf(h, "%d|%d|%s|%s|%g|%g|%g|%g\n",
				r.UserID, r.Period, r.ApplianceName, r.ApplianceCategory,
				r.Tariff, r.UsageHours, r.EnergyConsumption, r.Cost)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
