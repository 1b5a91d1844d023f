// Package middleware provides HTTP middleware shared across routes:
// request ids, request-scoped logging, and Prometheus instrumentation.
package middleware

// contextKey is a private type for context values set by this package,
// so they cannot collide with keys from other packages.
type contextKey string
