package domain

import "errors"

var (
	// ErrValidation signals client-caused bad input (malformed query, missing field).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAnnotationNotFound signals a missing annotation.
	ErrAnnotationNotFound = errors.New("annotation not found")
	// ErrPageNotFound signals a missing page record.
	ErrPageNotFound = errors.New("page not found")
	// ErrSharingNotFound signals a missing sharing record.
	ErrSharingNotFound = errors.New("sharing not found")
	// ErrBackendUnavailable signals an unreachable search backend or relational
	// store. Eligible for caller-side retry with backoff.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
