// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil provides helpers for working with oops errors.
package errutil

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it logs the message, code, domain and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if domain := oopsErr.Domain(); domain != "" {
			attrs = append(attrs, "domain", domain)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, append(attrs, "error", err)...)
}

// Code returns the oops error code of err as a string, or "" if err carries
// none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}
