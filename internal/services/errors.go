package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient        = errors.New("transient failure")
	ErrPermanent        = errors.New("permanent failure")
	ErrSignalLost       = errors.New("player signal lost")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("timeout")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failed operation may succeed on a later attempt.
// Transient and timeout failures qualify; permanent, validation, and
// configuration failures never do.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
