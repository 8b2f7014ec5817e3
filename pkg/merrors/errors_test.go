package merrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_CarriesKindAndDevMessage(t *testing.T) {
	t.Parallel()

	err := New(InvalidInput, "account number already exists")

	assert.Equal(t, "InvalidInput: account number already exists", err.Error())
	assert.True(t, Is(err, InvalidInput))
}

func TestWrap_UnwrapsToUnderlyingError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(DatabaseError, cause, "dial failed")

	assert.True(t, Is(err, DatabaseError))
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestIs_FollowsWrappedChain(t *testing.T) {
	t.Parallel()

	inner := New(Forbidden, "not allowed")
	wrapped := fmt.Errorf("operation failed: %w", inner)

	assert.True(t, Is(wrapped, Forbidden))
	assert.False(t, Is(wrapped, NotFound))
}

func TestIs_FalseForPlainError(t *testing.T) {
	t.Parallel()

	assert.False(t, Is(errors.New("plain"), ServerError))
}

func TestWithUser_SetsUserMessage(t *testing.T) {
	t.Parallel()

	err := New(Unauthorized, "dev detail").WithUser("please log in")

	assert.Equal(t, "please log in", err.User)
}
