package services_test

import (
	"errors"
	"strings"
	"testing"

	"lyriscope/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "describer", "complete", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"describer", "complete", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "monitor", "poll", "read failed", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient fallback marker, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "llm", "complete", "status 503", nil)
	if !services.Retryable(transient) {
		t.Fatalf("expected transient error to be retryable: %v", transient)
	}

	timeout := services.Wrap(services.ErrTimeout, "llm", "complete", "deadline", nil)
	if !services.Retryable(timeout) {
		t.Fatalf("expected timeout error to be retryable: %v", timeout)
	}

	permanent := services.Wrap(services.ErrPermanent, "llm", "complete", "status 401", nil)
	if services.Retryable(permanent) {
		t.Fatalf("expected permanent error to not be retryable: %v", permanent)
	}

	if services.Retryable(nil) {
		t.Fatal("expected nil error to not be retryable")
	}
	if services.Retryable(errors.New("unclassified")) {
		t.Fatal("expected unclassified error to not be retryable")
	}
}
