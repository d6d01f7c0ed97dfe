package pullerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreErrorFormatsWithPath(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("objects/ab/cdef.commit")
	assert.Contains(t, err.Error(), "NotFoundError")
	assert.Contains(t, err.Error(), "objects/ab/cdef.commit")
}

func TestStoreErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewNetworkError("https://example.test/config", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsNotFoundMatchesWrapped(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("refs/heads/main")
	wrapped := fmt.Errorf("fetching ref: %w", err)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsIntegrity(wrapped))
}

func TestIsIntegrityMatchesDigestMismatch(t *testing.T) {
	t.Parallel()

	err := NewIntegrityError("objects/ab/cdef.file", stringer("abcd"), stringer("ffff"))
	assert.True(t, IsIntegrity(err))
}

func TestStoreErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	var target error = &StoreError{Code: ErrNotFound}
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("x"))
	require.True(t, errors.Is(err, target))
}

type stringer string

func (s stringer) String() string { return string(s) }
