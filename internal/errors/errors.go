// Package errors provides the structured error types shared by sitewright's
// components and the collector the view pipeline's error sinks report into.
package errors

import (
	"fmt"
	"sync"
	"time"
)

// StageError records a failure of one file in one pipeline stage.
type StageError struct {
	Stage     string
	File      string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (se StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", se.Stage, se.File, se.Err)
}

// Unwrap returns the underlying error.
func (se StageError) Unwrap() error {
	return se.Err
}

// ErrorCollector collects stage errors from concurrent pipeline sinks.
type ErrorCollector struct {
	errors []StageError
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]StageError, 0),
	}
}

// Add records err for file in stage.
func (ec *ErrorCollector) Add(stage, file string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, StageError{
		Stage:     stage,
		File:      file,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// GetErrors returns a copy of all collected errors.
func (ec *ErrorCollector) GetErrors() []StageError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]StageError, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Count returns the number of collected errors.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors)
}

// CountByStage returns the number of errors per stage.
func (ec *ErrorCollector) CountByStage() map[string]int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	counts := make(map[string]int)
	for _, err := range ec.errors {
		counts[err.Stage]++
	}
	return counts
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []StageError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []StageError
	for _, err := range ec.errors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}
