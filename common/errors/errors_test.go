package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NotFound.Explain("customer %d not found", 7)
	assert.Equal(t, "[NotFoundError] customer 7 not found", err.Error())

	wrapped := Unavailable.Explain("load customer").Wrap(context.DeadlineExceeded)
	assert.Equal(t, "[Unavailable] load customer (context deadline exceeded)", wrapped.Error())
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)

	assert.Empty(t, NotFound.Message, "sentinels must not be mutated")
}

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("screen: %w", Invalid.Explain("missing name"))

	assert.ErrorIs(t, err, Invalid)
	assert.NotErrorIs(t, err, NotFound)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
	assert.Equal(t, "missing name", MessageOf(err))
	assert.Equal(t, "plain", MessageOf(fmt.Errorf("plain")))
}

func TestIsBusiness(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Invalid, true},
		{NotFound.Explain("x"), true},
		{Computation.Wrap(fmt.Errorf("nan")), true},
		{Conflict, true},
		{Unavailable, false},
		{RateLimited, false},
		{context.Canceled, false},
		{fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBusiness(tt.err), "%v", tt.err)
	}
}

func TestWithFieldCopies(t *testing.T) {
	base := Invalid.Explain("bad request").WithField("required", "name", "name is required")
	extended := base.WithField("len", "nationality", "must be 2 letters")

	assert.Len(t, base.Fields, 1)
	require.Len(t, extended.Fields, 2)
	assert.Equal(t, FieldError{Kind: "len", Field: "nationality", Message: "must be 2 letters"}, extended.Fields[1])
}

func TestProblemFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
		detail string
	}{
		{"validation", Invalid.Explain("bad id"), http.StatusBadRequest, TypeValidationError, "bad id"},
		{"not found", NotFound.Explain("customer 1 not found"), http.StatusNotFound, TypeNotFound, "customer 1 not found"},
		{"computation", Computation, http.StatusUnprocessableEntity, TypeComputationError, TitleComputationError},
		{"conflict", Conflict.Explain("stale"), http.StatusConflict, TypeConflict, "stale"},
		{"unavailable", fmt.Errorf("ctx: %w", Unavailable.Explain("db down")), http.StatusServiceUnavailable, TypeUnavailable, "db down"},
		{"rate limited", RateLimited.Explain("slow down"), http.StatusTooManyRequests, TypeRateLimited, "slow down"},
		{"foreign", fmt.Errorf("driver: secret dsn"), http.StatusInternalServerError, TypeInternalError, "unexpected error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := ProblemFor(tt.err, "/api/v1/customers/1")
			assert.Equal(t, tt.status, pd.Status)
			assert.Equal(t, tt.typ, pd.Type)
			assert.Equal(t, tt.detail, pd.Detail)
			assert.Equal(t, "/api/v1/customers/1", pd.Instance)
		})
	}
}

func TestProblemCarriesFieldErrors(t *testing.T) {
	pd := ProblemFor(Invalid.Explain("invalid review").WithField("oneof", "decision", "unknown decision"), "")
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, ValidationError{Field: "decision", Message: "unknown decision", Code: "oneof"}, pd.Errors[0])
	assert.Equal(t, "[400] Validation Error: invalid review", pd.Error())
}
