package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeTable represents record table decoding errors
	ErrorTypeTable ErrorType = "table"
	// ErrorTypeLookup represents place-search transport errors
	ErrorTypeLookup ErrorType = "lookup"
	// ErrorTypeEnrichment represents aborted enrichment runs
	ErrorTypeEnrichment ErrorType = "enrichment"
	// ErrorTypeGraph represents graph lookup errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeStore represents graph persistence errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind reports the error category. It is promoted to every typed error below.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Table Errors

// ErrMalformedTable is returned when the row decoder cannot produce a table
type ErrMalformedTable struct {
	*BaseError
	Source string
}

func NewMalformedTable(source string, err error) *ErrMalformedTable {
	return &ErrMalformedTable{
		BaseError: NewBaseError(ErrorTypeTable, fmt.Sprintf("malformed table: %s", source), err),
		Source:    source,
	}
}

// ErrUnsupportedTableFormat is returned when no decoder handles a file extension
type ErrUnsupportedTableFormat struct {
	*BaseError
	Filename string
}

func NewUnsupportedTableFormat(filename string) *ErrUnsupportedTableFormat {
	return &ErrUnsupportedTableFormat{
		BaseError: NewBaseError(ErrorTypeTable, fmt.Sprintf("unsupported table format: %s", filename), nil),
		Filename:  filename,
	}
}

// Lookup Errors

// ErrLookupRequestFailed is returned when the place-search request cannot complete
type ErrLookupRequestFailed struct {
	*BaseError
	Query string
}

func NewLookupRequestFailed(query string, err error) *ErrLookupRequestFailed {
	return &ErrLookupRequestFailed{
		BaseError: NewBaseError(ErrorTypeLookup, fmt.Sprintf("place search failed: %s", query), err),
		Query:     query,
	}
}

// Enrichment Errors

// ErrEnrichmentFailed is returned when a lookup reports a fatal status.
// The whole run is void and nothing was merged into the graph.
type ErrEnrichmentFailed struct {
	*BaseError
	Query    string
	Status   string
	Position int // zero-based index of the failing query in the run queue
}

func NewEnrichmentFailed(query, status string, position int, err error) *ErrEnrichmentFailed {
	return &ErrEnrichmentFailed{
		BaseError: NewBaseError(ErrorTypeEnrichment, fmt.Sprintf("lookup %d for %q returned %s", position+1, query, status), err),
		Query:     query,
		Status:    status,
		Position:  position,
	}
}

// ErrEnrichmentCancelled is returned when a run is cancelled before it completes
type ErrEnrichmentCancelled struct {
	*BaseError
	Query string
}

func NewEnrichmentCancelled(query string, err error) *ErrEnrichmentCancelled {
	message := "enrichment cancelled"
	if query != "" {
		message = fmt.Sprintf("enrichment cancelled before %q", query)
	}
	return &ErrEnrichmentCancelled{
		BaseError: NewBaseError(ErrorTypeContext, message, err),
		Query:     query,
	}
}

// ErrEnrichmentInProgress is returned when a graph cannot be replaced
// because it is being enriched
type ErrEnrichmentInProgress struct {
	*BaseError
	GraphID string
}

func NewEnrichmentInProgress(graphID string) *ErrEnrichmentInProgress {
	return &ErrEnrichmentInProgress{
		BaseError: NewBaseError(ErrorTypeEnrichment, fmt.Sprintf("enrichment in progress: %s", graphID), nil),
		GraphID:   graphID,
	}
}

// Graph Errors

// ErrGraphNotFound is returned when a stored graph does not exist
type ErrGraphNotFound struct {
	*BaseError
	GraphID string
}

func NewGraphNotFound(graphID string) *ErrGraphNotFound {
	return &ErrGraphNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph not found: %s", graphID), nil),
		GraphID:   graphID,
	}
}

// Store Errors

// ErrGraphStoreFailed is returned when a persistence operation fails
type ErrGraphStoreFailed struct {
	*BaseError
	Operation string
}

func NewGraphStoreFailed(operation string, err error) *ErrGraphStoreFailed {
	return &ErrGraphStoreFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// quotaStatuses are lookup statuses that usually clear up on a later attempt
var quotaStatuses = map[string]bool{
	"OVER_QUERY_LIMIT": true,
	"UNKNOWN_ERROR":    true,
}

// IsRetryable checks if the caller may retry the operation from scratch.
// Nothing in this module retries on its own.
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var failed *ErrEnrichmentFailed
	if stderrors.As(err, &failed) {
		return quotaStatuses[failed.Status] || IsErrorType(failed.Err, ErrorTypeLookup)
	}
	var busy *ErrEnrichmentInProgress
	if stderrors.As(err, &busy) {
		return true
	}
	if IsErrorType(err, ErrorTypeLookup) {
		return true
	}
	// Store errors are usually connectivity
	if IsErrorType(err, ErrorTypeStore) {
		return true
	}
	return false
}
