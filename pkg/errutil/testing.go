// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error reporting code.
// oops reports the innermost code of a wrapped chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, Code(err))
}

// AssertErrorDomain asserts that err is an oops error raised in domain.
func AssertErrorDomain(t *testing.T, err error, domain string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, domain, oopsErr.Domain())
}

// AssertErrorContext asserts that err carries key=value in its oops context,
// merged across the wrapped chain.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "context keys: %v", keys(ctx))
	assert.Equal(t, value, ctx[key])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
