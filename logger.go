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
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with domain-specific methods
type Logger struct {
	*slog.Logger
}

// NewLogger creates a text-formatted logger
func NewLogger(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return &Logger{slog.New(handler)}
}

// NewJSONLogger creates a JSON-formatted logger
func NewJSONLogger(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return &Logger{slog.New(handler)}
}

// NewDiscardLogger creates a logger that drops everything
func NewDiscardLogger() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{l.With("component", component)}
}

// WithUser adds a user id field to the logger
func (l *Logger) WithUser(userID int) *Logger {
	return &Logger{l.With("user_id", userID)}
}

// LogDataGeneration logs generated record counts
func (l *Logger) LogDataGeneration(periods, users, records int) {
	l.Info("Records generated",
		"periods", periods,
		"users", users,
		"count", records,
	)
}

// LogAnalysisStage logs analysis stage completion
func (l *Logger) LogAnalysisStage(stage string) {
	l.Info("Analysis stage completed",
		"stage", stage,
	)
}

// LogRecommendation logs a recommendation outcome for one appliance
func (l *Logger) LogRecommendation(appliance string, savings float64, canSave bool) {
	l.Debug("Recommendation generated",
		"appliance", appliance,
		"savings", fmt.Sprintf("%.2f", savings),
		"can_save", canSave,
	)
}

// LogApplianceSkipped logs an appliance that could not be analysed
func (l *Logger) LogApplianceSkipped(appliance string, err error) {
	l.Warn("Appliance skipped",
		"appliance", appliance,
		"error", err,
	)
}

// LogStorageOperation logs storage operations
func (l *Logger) LogStorageOperation(operation, path string) {
	l.Debug("Storage operation",
		"operation", operation,
		"path", path,
	)
}

// UserMessage outputs a message directly to stdout (bypassing structured logging)
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}
