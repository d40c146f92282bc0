// Package errors provides the structured error type used across chainkit.
// Every engine failure is an AppError carrying a machine-readable code:
// USAGE_ERROR for API misuse, STAGE_FAILED for errors raised by stages, and
// STOPPED for the graceful termination signal.
package errors
