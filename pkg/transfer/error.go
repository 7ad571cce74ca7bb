// pkg/transfer/error.go
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/extractor"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionRetry indicates the entity job should be run again
	ActionRetry
	// ActionSkipEntity indicates the entity should be given up for this run
	ActionSkipEntity
	// ActionAbort indicates the remaining entities should not be started
	ActionAbort
)

// Stage is the step of an entity job an error happened in
type Stage string

const (
	StageExtract Stage = "extract"
	StageClean   Stage = "clean"
	StageLoad    Stage = "load"
	StageVerify  Stage = "verify"
	StageAudit   Stage = "audit"
)

// StageError ties an error to the entity and stage it came from
type StageError struct {
	Stage  Stage
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Entity, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, entity string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Entity: entity, Err: err}
}

// ErrUnknownEntity is returned for entities without a cleaner or source
var ErrUnknownEntity = errors.New("unknown entity")

// ErrorCategory defines categories of errors during a run
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryWarning
	ErrorCategoryCleaning
	ErrorCategoryExtraction
	ErrorCategoryLoad
	ErrorCategoryConnectionLevel
	ErrorCategoryConfiguration
	ErrorCategoryCritical
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryCleaning:
		return "Cleaning"
	case ErrorCategoryExtraction:
		return "Extraction"
	case ErrorCategoryLoad:
		return "Load"
	case ErrorCategoryConnectionLevel:
		return "ConnectionLevel"
	case ErrorCategoryConfiguration:
		return "Configuration"
	case ErrorCategoryCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// ErrorRecord represents a single error of an entity job
type ErrorRecord struct {
	Category    ErrorCategory
	Entity      string
	Stage       Stage
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
	RetryCount  int
	Recoverable bool
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:    category,
		Error:       err,
		Timestamp:   time.Now(),
		Recoverable: category == ErrorCategoryConnectionLevel || extractor.IsTemporary(err),
	}

	if err != nil {
		record.Message = err.Error()
	}

	var se *StageError
	if errors.As(err, &se) {
		record.Stage = se.Stage
		record.Entity = se.Entity
	}

	return record
}

// WithEntity adds entity information to the error record
func (r ErrorRecord) WithEntity(entity string) ErrorRecord {
	r.Entity = entity
	return r
}

// WithRetry sets retry information
func (r ErrorRecord) WithRetry(retryCount int) ErrorRecord {
	r.RetryCount = retryCount
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Entity != "" {
		sb.WriteString(fmt.Sprintf("Entity: %s ", r.Entity))
	}
	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf(" (Retry: %d)", r.RetryCount))
	}

	return sb.String()
}

// ErrorHandler decides what to do about job errors and keeps counts for
// the run report
type ErrorHandler struct {
	logger          *zap.Logger
	errorThresholds map[ErrorCategory]int
	errorCounts     map[ErrorCategory]int
	sampleErrors    map[ErrorCategory][]ErrorRecord
	entityErrors    map[string]int
	maxRetries      int
	mu              sync.Mutex
	maxSamples      int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		errorThresholds: map[ErrorCategory]int{
			ErrorCategoryLoad:            3,
			ErrorCategoryConnectionLevel: 3,
			ErrorCategoryConfiguration:   1,
			ErrorCategoryCritical:        1,
		},
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		entityErrors: make(map[string]int),
		maxRetries:   3,
		maxSamples:   5, // Store up to 5 sample errors per category
	}
}

// WithThreshold overrides the abort threshold of a category
func (eh *ErrorHandler) WithThreshold(category ErrorCategory, threshold int) *ErrorHandler {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.errorThresholds[category] = threshold
	return eh
}

// CategorizeError determines the category of an error
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var category ErrorCategory
	var se *StageError
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.Canceled):
		category = ErrorCategoryCritical

	case errors.Is(err, ErrUnknownEntity):
		category = ErrorCategoryConfiguration

	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "broken pipe"):
		category = ErrorCategoryConnectionLevel

	case errors.As(err, &se):
		switch se.Stage {
		case StageExtract:
			category = ErrorCategoryExtraction
		case StageClean:
			category = ErrorCategoryCleaning
		case StageLoad:
			category = ErrorCategoryLoad
		default:
			category = ErrorCategoryWarning
		}

	default:
		category = ErrorCategoryLoad
	}

	if eh.logger != nil {
		eh.logger.Debug("Categorized error",
			zap.String("error", err.Error()),
			zap.String("category", category.String()))
	}

	return category
}

// HandleError records an error and determines the action
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryWarning:
		return ActionContinue

	case ErrorCategoryExtraction:
		if record.Recoverable && record.RetryCount < eh.maxRetries {
			return ActionRetry
		}
		return ActionSkipEntity

	case ErrorCategoryConnectionLevel:
		if record.RetryCount < eh.maxRetries {
			if eh.logger != nil {
				eh.logger.Warn("Retrying after connection error",
					zap.String("entity", record.Entity),
					zap.Int("retry", record.RetryCount+1),
					zap.String("error", record.Message))
			}
			return ActionRetry
		}
		return ActionSkipEntity

	case ErrorCategoryCleaning, ErrorCategoryLoad:
		return ActionSkipEntity

	case ErrorCategoryConfiguration, ErrorCategoryCritical:
		if eh.logger != nil {
			eh.logger.Error("Critical error during run",
				zap.String("category", record.Category.String()),
				zap.String("error", record.Message))
		}
		return ActionAbort

	default:
		return ActionContinue
	}
}

// ShouldAbortRun determines if the errors so far warrant not starting the
// remaining entities
func (eh *ErrorHandler) ShouldAbortRun() bool {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	for _, category := range []ErrorCategory{
		ErrorCategoryCritical,
		ErrorCategoryConfiguration,
		ErrorCategoryConnectionLevel,
		ErrorCategoryLoad,
	} {
		threshold := eh.errorThresholds[category]
		if count := eh.errorCounts[category]; threshold > 0 && count >= threshold {
			if eh.logger != nil {
				eh.logger.Error("Aborting run due to error threshold",
					zap.String("category", category.String()),
					zap.Int("errorCount", count),
					zap.Int("threshold", threshold))
			}
			return true
		}
	}
	return false
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++

	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if record.Entity != "" {
		eh.entityErrors[record.Entity]++
	}

	if eh.logger != nil {
		logLevel := zap.InfoLevel
		switch record.Category {
		case ErrorCategoryWarning, ErrorCategoryExtraction, ErrorCategoryConnectionLevel:
			logLevel = zap.WarnLevel
		case ErrorCategoryLoad, ErrorCategoryConfiguration, ErrorCategoryCritical:
			logLevel = zap.ErrorLevel
		}

		eh.logger.Log(logLevel, "Entity job error",
			zap.String("category", record.Category.String()),
			zap.String("entity", record.Entity),
			zap.String("stage", string(record.Stage)),
			zap.String("error", record.Message),
			zap.Bool("recoverable", record.Recoverable),
			zap.Int("retryCount", record.RetryCount))
	}
}

// GetErrorSummary returns the error counts per category
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int, len(eh.errorCounts))
	for category, count := range eh.errorCounts {
		summary[category] = count
	}
	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord, len(eh.sampleErrors))
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}
	return samples
}

// GetEntityErrorCounts returns error counts by entity
func (eh *ErrorHandler) GetEntityErrorCounts() map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	counts := make(map[string]int, len(eh.entityErrors))
	for entity, count := range eh.entityErrors {
		counts[entity] = count
	}
	return counts
}

// Reset clears the counts between scheduled runs
func (eh *ErrorHandler) Reset() {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts = make(map[ErrorCategory]int)
	eh.sampleErrors = make(map[ErrorCategory][]ErrorRecord)
	eh.entityErrors = make(map[string]int)
}
