// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package exprnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rlsguard/rlsguard/internal/exprnorm"
)

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := exprnorm.Normalize("tenant_id   =    current_setting('app.tenant_id')", "")
	assert.Equal(t, "tenant_id = current_setting('app.tenant_id')", got)
}

func TestNormalize_StripsCasts(t *testing.T) {
	got := exprnorm.Normalize("status = 'archived'::text", "")
	assert.Equal(t, "status = 'archived'", got)
}

func TestNormalize_StripsSchemaQualification(t *testing.T) {
	got := exprnorm.Normalize("public.orders.tenant_id = current_setting('app.tenant_id')", "public")
	assert.Equal(t, "orders.tenant_id = current_setting('app.tenant_id')", got)
}

func TestNormalize_StripsNestedOuterParens(t *testing.T) {
	got := exprnorm.Normalize("((tenant_id = current_setting('app.tenant_id')))", "")
	assert.Equal(t, "tenant_id = current_setting('app.tenant_id')", got)
}

func TestNormalize_IsFixpointIdempotent(t *testing.T) {
	expr := "((public.orders.status::text = 'archived'::text))"
	once := exprnorm.Normalize(expr, "public")
	twice := exprnorm.Normalize(once, "public")
	assert.Equal(t, once, twice)
}

func TestEqual_TextuallyEquivalentAfterNormalization(t *testing.T) {
	a := "public.orders.tenant_id = current_setting('app.tenant_id')"
	b := "(orders.tenant_id   =   current_setting('app.tenant_id'))"
	assert.True(t, exprnorm.Equal(a, b, "public"))
}

func TestEqual_DifferentExpressionsAreNotEqual(t *testing.T) {
	a := "tenant_id = current_setting('app.tenant_id')"
	b := "owner_id = current_setting('app.user_id')"
	assert.False(t, exprnorm.Equal(a, b, ""))
}
