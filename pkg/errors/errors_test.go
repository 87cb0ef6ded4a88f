package classpoll_errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create poll: %w", Invalid("question is required"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "create poll: question is required", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "question is required", ve.Reason)
}

func TestPublicMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{Invalid("Option index is out of range"), "Option index is out of range"},
		{fmt.Errorf("create: %w", ErrConflict), "A poll is already active. Please end it before creating a new one."},
		{ErrNotFound, "Poll not found"},
		{ErrInvalidState, "Poll is not active"},
		{ErrDuplicateVote, "You have already voted"},
		{fmt.Errorf("%w: connection refused", ErrStorage), "Server error"},
		{errors.New("boom"), "Server error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PublicMessage(tc.err))
	}
}
