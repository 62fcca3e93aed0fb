package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewNotFoundError("payment", uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidState))

	wrapped := fmt.Errorf("allocate: %w", NewStateConflictError("payment %s is fully allocated", "p-1"))
	assert.True(t, errors.Is(wrapped, ErrInvalidState))
	assert.Equal(t, KindStateConflict, KindOf(wrapped))
}

func TestWrapPersistence(t *testing.T) {
	assert.NoError(t, WrapPersistence("save", nil))

	domainErr := NewValidationError("INVALID_AMOUNT", "bad amount")
	assert.Same(t, domainErr, WrapPersistence("save", domainErr))

	cause := errors.New("connection reset")
	err := WrapPersistence("save invoice", cause)
	assert.True(t, IsKind(err, KindPersistence))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save invoice")
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}
