package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-file review failures.
type ErrorKind string

const (
	ErrExtraction  ErrorKind = "extraction"
	ErrAssessment  ErrorKind = "assessment"
	ErrReportWrite ErrorKind = "report_write"
	ErrInternal    ErrorKind = "internal"
	ErrCancelled   ErrorKind = "cancelled"
)

// ReviewError is a tagged error raised by one stage of the review pipeline.
// Cause keeps the underlying diagnostic.
type ReviewError struct {
	Kind  ErrorKind
	File  string
	Cause error
}

// Error implements the error interface
func (e *ReviewError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s failed for %s", e.Kind, e.File)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Kind, e.File, e.Cause)
}

func (e *ReviewError) Unwrap() error {
	return e.Cause
}

// NewExtractionError wraps a text extraction failure.
func NewExtractionError(file string, cause error) error {
	return &ReviewError{Kind: ErrExtraction, File: file, Cause: cause}
}

// NewAssessmentError wraps a reasoning service failure.
func NewAssessmentError(file string, cause error) error {
	return &ReviewError{Kind: ErrAssessment, File: file, Cause: cause}
}

// NewReportWriteError wraps a report or annotation generation failure.
func NewReportWriteError(file string, cause error) error {
	return &ReviewError{Kind: ErrReportWrite, File: file, Cause: cause}
}

// KindOf returns the kind of a ReviewError in err's chain, or ErrInternal.
func KindOf(err error) ErrorKind {
	var re *ReviewError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrInternal
}

// IsKind reports whether err carries a ReviewError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *ReviewError
	return errors.As(err, &re) && re.Kind == kind
}
