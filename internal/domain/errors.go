package domain

import (
	"errors"
	"fmt"
)

// Classification is the flat, finite error taxonomy every component in
// the core classifies its errors into. Components branch on
// Classification, never on concrete error types.
type Classification string

const (
	Validation  Classification = "validation"
	NotFound    Classification = "not_found"
	Conflict    Classification = "conflict"
	Transient   Classification = "transient"
	CircuitOpen Classification = "circuit_open"
	Permission  Classification = "permission"
	Disk        Classification = "disk"
	Corruption  Classification = "corruption"
	Internal    Classification = "internal"
)

// ClassifiedError wraps an underlying error with a Classification and an
// optional correlation ID for the history log's user-facing surface.
type ClassifiedError struct {
	Class         Classification
	CorrelationID string
	Err           error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify wraps err with the given classification. A nil err returns nil.
func Classify(class Classification, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Err: err}
}

// ClassifyCorrelated is Classify with a correlation ID attached for the
// history log.
func ClassifyCorrelated(class Classification, correlationID string, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, CorrelationID: correlationID, Err: err}
}

// ClassOf extracts the Classification from err, defaulting to Internal
// when err was never classified.
func ClassOf(err error) Classification {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return Internal
}

// IsTransient reports whether err should be retried with backoff rather
// than abandoned. CircuitOpen and Transient both retry; Disk retries
// only when the underlying condition is itself transient (disk full),
// which callers encode by classifying as Transient rather than Disk in
// that case — Disk here covers permission-style failures that need an
// operator fix.
func IsTransient(err error) bool {
	switch ClassOf(err) {
	case Transient, CircuitOpen:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether err should go straight to Abandoned.
func IsPermanent(err error) bool {
	switch ClassOf(err) {
	case Validation, Conflict, Permission, Corruption:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidMovie     = errors.New("movie requires a quality profile and catalog id")
	ErrDownloadActive   = errors.New("movie already has a non-terminal download handle")
	ErrNoLease          = errors.New("job lease not held")
	ErrLeaseExpired     = errors.New("job lease deadline has passed")
	ErrNoVideo          = errors.New("payload contains no video file")
	ErrPayloadMissing   = errors.New("payload path does not exist")
	ErrTemplateCollides = errors.New("naming template target collides with an existing healthy file")
	ErrNoInfoHash       = errors.New("download uri carries no recoverable info-hash")
)
