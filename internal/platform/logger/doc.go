// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Loggers travel through request contexts so that stores
// and services pick up request-scoped attributes such as the trace ID.
package logger
