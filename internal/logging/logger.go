// Package logging defines the structured-logging interface used across the
// toolkit. The backup engine and the collaborators only depend on Logger; the
// CLI decides which slog handler sits behind it.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "collection restored", "collection", name, "documents", n)
type Logger interface {
	// Debug logs detail that is only useful when troubleshooting.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs a progress step.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a per-item failure or another non-fatal condition.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs a failure that aborts the current operation.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
