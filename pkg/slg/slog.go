package slg

import (
	"context"
	"log/slog"
)

type slogStruct struct {
	Name string
}

var slogKey = &slogStruct{Name: "slog"}

// GetSlog returns the logger stored in ctx, or fallback when there is none.
func GetSlog(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(slogKey).(*slog.Logger); ok && log != nil {
		return log
	}

	return fallback
}

func WithSlog(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, slogKey, log)
}
