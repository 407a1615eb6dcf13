// Package domain defines domain-level errors for the bars feature.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories of the ingest and analysis runs.
// Fatal categories abort a run; the others are reported and the run continues.
var (
	// ErrConnection indicates the store or the market data provider is unreachable (fatal).
	ErrConnection = errors.New("connection error")

	// ErrSchemaResolution indicates no usable date or close column was found in a provider payload (fatal).
	ErrSchemaResolution = errors.New("schema resolution failed")

	// ErrRowParse indicates a single row could not be parsed; the row is dropped.
	ErrRowParse = errors.New("row parse error")

	// ErrEmptyResult indicates a run produced zero rows. Callers log it and continue.
	ErrEmptyResult = errors.New("empty result")

	// ErrPartitionAlreadyExists is returned when the time series collection is already initialized.
	// Callers treat it as a no-op.
	ErrPartitionAlreadyExists = errors.New("partition already exists")

	// ErrInvalidWindow indicates a non-positive moving average window.
	ErrInvalidWindow = errors.New("window size must be positive")

	// ErrSwapIncomplete indicates new rows were staged but older generations could not be removed.
	ErrSwapIncomplete = errors.New("replace staged new rows but could not remove previous rows")

	// ErrUnorderedSeries indicates a store returned a partition that is not sorted by date (fatal).
	ErrUnorderedSeries = errors.New("series is not ordered by date")
)

// ConnectionError wraps a transport failure against an external collaborator.
type ConnectionError struct {
	Target string // "mongo", "postgres", "yahoo", ...
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports ErrConnection as the category of every ConnectionError.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// SchemaResolutionError names the canonical field that could not be resolved
// and the normalized columns that were inspected.
type SchemaResolutionError struct {
	Field   string
	Columns []string
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("schema resolution failed: no %s column among [%s]", e.Field, strings.Join(e.Columns, ", "))
}

func (e *SchemaResolutionError) Is(target error) bool { return target == ErrSchemaResolution }

// RowParseError describes why a single input row was dropped.
type RowParseError struct {
	Row    int // 0-based index in the provider payload
	Column string
	Value  any
	Err    error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d: parse %s %v: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

func (e *RowParseError) Is(target error) bool { return target == ErrRowParse }

// StageError attributes a fatal error to the pipeline stage that produced it.
type StageError struct {
	Stage string // connect, fetch, normalize, store, read, aggregate, render
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage wraps err with the stage name. A nil err stays nil.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
