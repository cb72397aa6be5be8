package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, persisted results and internal error handling.
const (
	ErrCodeTimeout      = "ACQUISITION_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeChallenge    = "CHALLENGE_UNRESOLVED"
	ErrCodeInterception = "INTERCEPTION_UNRESOLVED"

	// Strategy-local codes. They never fail a target; the extraction engine
	// falls through to the next strategy.
	ErrCodeSelectorNotFound = "SELECTOR_NOT_FOUND"
	ErrCodeParse            = "PARSE_FAILURE"

	ErrCodeNotifier = "NOTIFIER_UNAVAILABLE"
	ErrCodeHistory  = "HISTORY_UNAVAILABLE"
	ErrCodeRegistry = "REGISTRY_INVALID"
	ErrCodeAPI      = "API_FAILURE"
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ScrapeError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	var se *ScrapeError
	for err != nil {
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}
