package model

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the dispatch controller, the scheduler and the
// command boundary. Callers wrap them with context and test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrNoRoute             = fmt.Errorf("no available routes: %w", ErrResourceUnavailable)
	ErrValidation          = errors.New("validation error")
)
