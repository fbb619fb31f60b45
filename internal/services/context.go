package services

import "context"

type contextKey string

const (
	sourceKey    contextKey = "source"
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
	stopKey      contextKey = "stop"
)

// WithSource annotates context with the source identifier being fetched.
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, source)
}

// SourceFromContext returns the source identifier if present.
func SourceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sourceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the ingestion run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the ingestion run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStopSignal attaches stop to ctx. Work that proceeds in steps checks
// StopRequested between steps and winds down once stop is done, while ctx
// itself stays usable for finishing the current step.
func WithStopSignal(ctx context.Context, stop context.Context) context.Context {
	if stop == nil {
		return ctx
	}
	return context.WithValue(ctx, stopKey, stop)
}

// StopRequested returns ctx's own error, or the attached stop signal's error
// once it has fired.
func StopRequested(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stop, ok := ctx.Value(stopKey).(context.Context); ok {
		return stop.Err()
	}
	return nil
}
