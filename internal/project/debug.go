package project

import "log/slog"

// Debug is a logging handle scoped to a project context.
type Debug struct {
	logger *slog.Logger
}

// NewDebug wraps a logger. A nil logger discards everything.
func NewDebug(logger *slog.Logger) Debug {
	if logger == nil {
		logger = slog.New(discardHandler)
	}
	return Debug{logger: logger}
}

// New derives a handle for a named scope.
func (d Debug) New(scope string) Debug {
	return Debug{logger: d.Logger().With("scope", scope)}
}

// Logger returns the underlying logger.
func (d Debug) Logger() *slog.Logger {
	if d.logger == nil {
		return slog.New(discardHandler)
	}
	return d.logger
}

// Log writes a debug-level record.
func (d Debug) Log(msg string, args ...any) {
	d.Logger().Debug(msg, args...)
}
