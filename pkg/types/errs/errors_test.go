package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("ProposalUseCase - Create: %w", NewValidation("approver", "required"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "ProposalUseCase - Create: validation error: approver: required", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "approver", ve.Field)
}

func TestValidationErrorWithoutField(t *testing.T) {
	assert.Equal(t, "validation error: empty batch", NewValidation("", "empty batch").Error())
}
