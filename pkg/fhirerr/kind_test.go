package fhirerr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind fhirerr.Kind
		want int
	}{
		{fhirerr.KindInvalid, http.StatusUnprocessableEntity},
		{fhirerr.KindNotFound, http.StatusNotFound},
		{fhirerr.KindGone, http.StatusGone},
		{fhirerr.KindConflict, http.StatusConflict},
		{fhirerr.KindPreconditionFailed, http.StatusPreconditionFailed},
		{fhirerr.KindNotSupported, http.StatusMethodNotAllowed},
		{fhirerr.KindUnauthorized, http.StatusUnauthorized},
		{fhirerr.KindForbidden, http.StatusForbidden},
		{fhirerr.KindBadRequest, http.StatusBadRequest},
		{fhirerr.KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, fhirerr.StatusFor(tc.kind), tc.kind)
	}
}

func TestErrorIs(t *testing.T) {
	t.Parallel()

	err := fhirerr.New(fhirerr.KindNotFound, "resource missing")
	assert.True(t, errors.Is(err, fhirerr.ErrNotFound))
	assert.False(t, errors.Is(err, fhirerr.ErrConflict))
}

func TestToOperationOutcome(t *testing.T) {
	t.Parallel()

	t.Run("known kind", func(t *testing.T) {
		t.Parallel()
		err := fhirerr.New(fhirerr.KindBadRequest, "missing tenant header")
		outcome, status := fhirerr.ToOperationOutcome(err)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "OperationOutcome", outcome.ResourceType)
		assert.Len(t, outcome.Issue, 1)
		assert.Equal(t, "invalid", outcome.Issue[0].Code)
		assert.Equal(t, "missing tenant header", outcome.Issue[0].Diagnostics)
	})

	t.Run("opaque error defaults to internal", func(t *testing.T) {
		t.Parallel()
		outcome, status := fhirerr.ToOperationOutcome(errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "fatal", outcome.Issue[0].Severity)
	})

	t.Run("details become extra issues", func(t *testing.T) {
		t.Parallel()
		err := fhirerr.New(fhirerr.KindInvalid, "validation failed", "name: required", "birthDate: invalid format")
		outcome, _ := fhirerr.ToOperationOutcome(err)

		assert.Len(t, outcome.Issue, 3)
		assert.Equal(t, "name: required", outcome.Issue[1].Diagnostics)
	})
}
