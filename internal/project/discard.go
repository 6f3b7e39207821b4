package project

import (
	"context"
	"log/slog"
)

// discardHandler drops every record. It mirrors slog.DiscardHandler,
// which is unavailable before Go 1.24.
var discardHandler slog.Handler = discard{}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }
