package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks transport failures and unexpected HTTP statuses. Retryable,
	// counted toward the source's circuit breaker.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited marks 429 responses. Triggers backoff, not a breaker failure.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrParse marks a single listing that could not be normalized.
	ErrParse = errors.New("parse error")
	// ErrCircuitOpen marks calls short-circuited by an open breaker.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrIntegrity marks storage corruption. Fatal to ingestion.
	ErrIntegrity = errors.New("integrity violation")
	// ErrWriteContention marks an upsert that could not acquire the write lock
	// before the busy budget ran out. Retryable.
	ErrWriteContention = errors.New("write contention timeout")
	// ErrConfiguration marks invalid operator configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrRobotsDisallowed marks requests refused by the host's robots policy.
	ErrRobotsDisallowed = errors.New("disallowed by robots policy")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether a later attempt may succeed without operator action.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrWriteContention)
}

// IsFatal reports whether err must stop the whole pipeline.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// ErrorKind returns a short classification used in run summaries.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrWriteContention):
		return "write_contention"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrRobotsDisallowed):
		return "robots"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
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
