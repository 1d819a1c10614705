package model

import (
	"errors"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// PlatformError is returned by chat platform adapters with the failure already classified.
type PlatformError struct {
	Class      enums.ErrorClass
	RetryAfter time.Duration
	Err        error
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return "platform error: " + string(e.Class)
	}
	return e.Err.Error()
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// ErrorClassOf classifies err. Unknown errors are treated as transient.
func ErrorClassOf(err error) enums.ErrorClass {
	if err == nil {
		return enums.ErrorClassNone
	}
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Class
	}
	return enums.ErrorClassTransient
}

// RetryAfterOf returns the server-provided wait hint, if any.
func RetryAfterOf(err error) time.Duration {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.RetryAfter
	}
	return 0
}
