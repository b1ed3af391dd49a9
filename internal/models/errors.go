package models

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Services wrap these with detail via
// fmt.Errorf("%w: ...", ErrValidation) and the HTTP layer maps them to status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// ErrNoActiveSession is returned when a set or completion targets the
// active session and the user has none.
var ErrNoActiveSession = fmt.Errorf("%w: no active workout session", ErrValidation)
