package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout covers store reads and writes
	DefaultTimeout = 10 * time.Second

	// LongTimeout covers relayed chat turns and uploads
	LongTimeout = 2 * time.Minute

	// ParseTimeout covers extraction plus a structuring call
	ParseTimeout = 5 * time.Minute

	// ShortTimeout is for quick operations (cache lookups, etc.)
	ShortTimeout = 2 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context with long timeout for operations that may take longer
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithParseTimeout bounds synchronous document parsing
func WithParseTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ParseTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
