// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		logger.Error(msg, oopsAttrs(oopsErr)...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// LogWarn logs an error at warning level with the same structure as LogError.
// Used where a failure is tolerated and the operation degrades instead of aborting.
func LogWarn(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		logger.Warn(msg, oopsAttrs(oopsErr)...)
	} else {
		logger.Warn(msg, "error", err)
	}
}

func oopsAttrs(oopsErr oops.OopsError) []any {
	attrs := []any{
		"error", oopsErr.Error(),
	}
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
