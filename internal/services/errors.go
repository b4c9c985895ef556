package services

import "github.com/pkg/errors"

// Error taxonomy surfaced to the HTTP layer. All of these are recoverable
// at the caller level; only storage failure is treated as fatal.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReport    = errors.New("duplicate report")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrSchedulingConflict = errors.New("scheduling conflict")
)
