// Package service contains the application services orchestrating the task
// lifecycle, time tracking, queries and notifications over the port
// interfaces.
package service

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
