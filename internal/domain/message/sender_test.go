package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/message"
)

func TestUserSender(t *testing.T) {
	s, err := message.UserSender("alice-id")
	require.NoError(t, err)

	assert.False(t, s.IsSystem())
	id, ok := s.UserID()
	assert.True(t, ok)
	assert.Equal(t, "alice-id", id)
	assert.Equal(t, "alice-id", s.String())
}

func TestUserSender_Invalid(t *testing.T) {
	_, err := message.UserSender("")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	// A user may not claim the system's wire id.
	_, err = message.UserSender("system")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSystemSender(t *testing.T) {
	s := message.SystemSender()

	assert.True(t, s.IsSystem())
	_, ok := s.UserID()
	assert.False(t, ok)
	assert.Equal(t, "system", s.String())
}

func TestParseSender(t *testing.T) {
	s, err := message.ParseSender("system")
	require.NoError(t, err)
	assert.True(t, s.IsSystem())

	s, err = message.ParseSender("alice-id")
	require.NoError(t, err)
	id, ok := s.UserID()
	assert.True(t, ok)
	assert.Equal(t, "alice-id", id)

	_, err = message.ParseSender("")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
