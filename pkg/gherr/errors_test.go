package gherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("role %s not found", "r1")))
	assert.True(t, IsBadRequest(BadRequest("bad name")))
	assert.True(t, IsConflict(Conflict("duplicate name")))
	assert.True(t, IsForbidden(Forbidden("system role")))

	assert.False(t, IsNotFound(BadRequest("bad name")))
	assert.False(t, IsConflict(nil))
	assert.False(t, IsForbidden(errors.New("plain")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("service layer: %w", NotFound("role missing"))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unique_violation")
	err := Wrap(KindConflict, cause, "role name taken")

	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "conflict")
	assert.Contains(t, err.Error(), "unique_violation")
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := Forbidden("cannot modify role %q", "owner")
	require.ErrorIs(t, err, Forbidden(""))
	assert.NotErrorIs(t, err, Conflict(""))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", Kind(0).String())
}
