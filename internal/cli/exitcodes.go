// Package cli provides shared utilities for the skyapi command line.
package cli

import "fmt"

// Exit codes for skyapi commands.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: Resolution, I/O or store errors
//   - 2: Usage errors (unknown commands, bad flags, wrong arguments)
const (
	// ExitOK indicates successful execution.
	ExitOK = 0

	// ExitError indicates a runtime failure.
	ExitError = 1

	// ExitUsage indicates the command line was invalid.
	ExitUsage = 2
)

// ExitCodeError makes Execute exit with a specific code without printing.
type ExitCodeError int

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// UsageError marks an error caused by the command line itself.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Usagef returns a UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}
