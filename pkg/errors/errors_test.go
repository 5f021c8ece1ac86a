package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestCloneKeepsCodeAndMatches(t *testing.T) {
	err := Clone(ErrValidation, "reason is required")
	assert.Equal(t, "reason is required", err.Message)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestConflictCarriesState(t *testing.T) {
	err := Conflict("slot already approved", "approved")
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "approved", err.Details["state"])
	assert.Nil(t, ErrConflict.Details)

	wrapped := fmt.Errorf("sign: %w", err)
	assert.Equal(t, err, FromError(wrapped))
}
