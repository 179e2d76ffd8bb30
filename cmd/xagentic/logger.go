package main

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// newServerLogger builds the slog logger used for HTTP request logs.
// Errors are tinted red regardless of attribute key.
func newServerLogger(output io.Writer) *slog.Logger {
	handler := tint.NewHandler(output, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02 15:04:05",
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}
