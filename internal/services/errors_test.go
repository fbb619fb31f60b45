package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"jobsieve/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrNetwork, "adzuna", "fetch page", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"adzuna", "fetch page", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
		kind      string
	}{
		{"network", services.Wrap(services.ErrNetwork, "src", "get", "", nil), true, false, "network"},
		{"rate limited", services.Wrap(services.ErrRateLimited, "src", "get", "429", nil), true, false, "rate_limited"},
		{"contention", fmt.Errorf("upsert: %w", services.ErrWriteContention), true, false, "write_contention"},
		{"integrity", services.Wrap(services.ErrIntegrity, "store", "quick_check", "corrupt", nil), false, true, "integrity"},
		{"parse", services.Wrap(services.ErrParse, "html", "item 3", "missing title", nil), false, false, "parse"},
		{"circuit", services.Wrap(services.ErrCircuitOpen, "src", "", "", nil), false, false, "circuit_open"},
		{"plain", errors.New("other"), false, false, "unknown"},
		{"nil", nil, false, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRetryable(tc.err); got != tc.retryable {
				t.Fatalf("IsRetryable = %v, want %v", got, tc.retryable)
			}
			if got := services.IsFatal(tc.err); got != tc.fatal {
				t.Fatalf("IsFatal = %v, want %v", got, tc.fatal)
			}
			if got := services.ErrorKind(tc.err); got != tc.kind {
				t.Fatalf("ErrorKind = %q, want %q", got, tc.kind)
			}
		})
	}
}
