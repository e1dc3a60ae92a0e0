// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges samber/oops errors to slog and tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs flattens err into slog key/value pairs. oops errors add their code,
// public message and context; any other error contributes only its text.
func Attrs(err error) []any {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return attrs
	}
	if code, _ := any(oopsErr.Code()).(string); code != "" {
		attrs = append(attrs, "code", code)
	}
	if public := oopsErr.Public(); public != "" {
		attrs = append(attrs, "public", public)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at error level with extra attributes appended.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.ErrorContext(ctx, msg, append(Attrs(err), extra...)...)
}

// LogWarn logs err at warn level. Used for best-effort failures the caller
// recovers from.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.WarnContext(ctx, msg, append(Attrs(err), extra...)...)
}
