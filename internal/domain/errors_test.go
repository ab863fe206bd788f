package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"name": "is required", "college": "is required"}}
	assert.Equal(t, "validation failed: college: is required; name: is required", err.Error())
	assert.True(t, errors.Is(err, ErrBadRequest))
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
}

func TestProfile_FillBlanks(t *testing.T) {
	p := Profile{Name: "Ana", College: ""}
	got := p.FillBlanks(Profile{Name: "Other", College: "CCS", Program: "BSIT"})
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "CCS", got.College)
	assert.Equal(t, "BSIT", got.Program)
	assert.Empty(t, got.Gender)
}

func TestErrRevoked_IsConflict(t *testing.T) {
	err := fmt.Errorf("verify A1: %w", ErrRevoked)
	assert.ErrorIs(t, err, ErrRevoked)
	assert.ErrorIs(t, err, ErrConflict)
}
