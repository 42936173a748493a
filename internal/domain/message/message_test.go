package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/message"
)

func userSender(t *testing.T, id string) message.Sender {
	t.Helper()
	s, err := message.UserSender(id)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "Shaken, not stirred", message.TypeText)
	require.NoError(t, err)

	assert.Equal(t, "chat-1", m.ChatID)
	assert.Equal(t, "Shaken, not stirred", m.Content)
	assert.Equal(t, message.TypeText, m.Type)
	assert.True(t, m.Timestamp.IsZero(), "timestamp is assigned by the store")
	assert.False(t, m.Edited)
	assert.Empty(t, m.Reactions)
}

func TestNew_DefaultsToText(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, message.TypeText, m.Type)
}

func TestNew_Invalid(t *testing.T) {
	sender := userSender(t, "alice-id")

	tests := []struct {
		name    string
		chatID  string
		content string
		msgType message.Type
	}{
		{"empty chat id", "", "hi", message.TypeText},
		{"empty content", "chat-1", "", message.TypeText},
		{"unknown type", "chat-1", "hi", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := message.New(tt.chatID, sender, tt.content, tt.msgType)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestNewSystem(t *testing.T) {
	m, err := message.NewSystem("chat-1", "Bob joined the group")
	require.NoError(t, err)

	assert.Equal(t, message.TypeSystem, m.Type)
	assert.True(t, m.Sender.IsSystem())
	_, ok := m.Sender.UserID()
	assert.False(t, ok)
}

func TestValidType(t *testing.T) {
	tests := []struct {
		msgType message.Type
		valid   bool
	}{
		{message.TypeText, true},
		{message.TypeImage, true},
		{message.TypeRecipe, true},
		{message.TypeSystem, true},
		{"video", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, message.ValidType(tt.msgType), "type %q", tt.msgType)
	}
}

func TestMessage_AddReaction(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "hi", message.TypeText)
	require.NoError(t, err)

	assert.True(t, m.AddReaction("🍸", "bob-id"))
	assert.True(t, m.HasReaction("🍸", "bob-id"))

	// Same user, same emoji: idempotent.
	assert.False(t, m.AddReaction("🍸", "bob-id"))
	assert.Equal(t, []string{"bob-id"}, m.Reactions["🍸"])

	// Different users accumulate under the same emoji.
	assert.True(t, m.AddReaction("🍸", "carol-id"))
	assert.Equal(t, []string{"bob-id", "carol-id"}, m.Reactions["🍸"])
}

func TestMessage_AddReaction_Invalid(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "hi", message.TypeText)
	require.NoError(t, err)

	assert.False(t, m.AddReaction("", "bob-id"))
	assert.False(t, m.AddReaction("🍸", ""))
	assert.Empty(t, m.Reactions)
}

func TestMessage_RemoveReaction(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "hi", message.TypeText)
	require.NoError(t, err)

	m.AddReaction("🍸", "bob-id")
	m.AddReaction("🍸", "carol-id")

	assert.True(t, m.RemoveReaction("🍸", "bob-id"))
	assert.Equal(t, []string{"carol-id"}, m.Reactions["🍸"])

	// Never-added reaction: no-op.
	assert.False(t, m.RemoveReaction("🍸", "bob-id"))
	assert.False(t, m.RemoveReaction("🔥", "carol-id"))

	// Removing the last user deletes the emoji key entirely.
	assert.True(t, m.RemoveReaction("🍸", "carol-id"))
	assert.NotContains(t, m.Reactions, "🍸")
}

func TestMessage_Edit(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "original", message.TypeText)
	require.NoError(t, err)

	err = m.Edit("corrected", "alice-id")
	require.NoError(t, err)

	assert.Equal(t, "corrected", m.Content)
	assert.True(t, m.Edited)
	require.NotNil(t, m.EditedAt)
}

func TestMessage_Edit_OnlyAuthor(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "original", message.TypeText)
	require.NoError(t, err)

	err = m.Edit("hijacked", "bob-id")
	assert.ErrorIs(t, err, errs.ErrForbidden)
	assert.Equal(t, "original", m.Content)
}

func TestMessage_Edit_SystemMessage(t *testing.T) {
	m, err := message.NewSystem("chat-1", "Bob joined the group")
	require.NoError(t, err)

	err = m.Edit("tampered", "alice-id")
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestMessage_Edit_EmptyContent(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "original", message.TypeText)
	require.NoError(t, err)

	err = m.Edit("", "alice-id")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestMessage_IsReply(t *testing.T) {
	m, err := message.New("chat-1", userSender(t, "alice-id"), "hi", message.TypeText)
	require.NoError(t, err)
	assert.False(t, m.IsReply())

	m.ReplyTo = "msg-42"
	assert.True(t, m.IsReply())
}
