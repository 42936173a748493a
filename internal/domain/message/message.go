// Package message defines the message entity of the messaging core.
package message

import (
	"slices"
	"time"

	"github.com/mixgram/mixgram/internal/domain/errs"
)

// Type represents the content kind of a message.
type Type string

const (
	// TypeText is a plain text message.
	TypeText Type = "text"
	// TypeImage is an image message; content carries the image reference.
	TypeImage Type = "image"
	// TypeRecipe is a shared recipe card.
	TypeRecipe Type = "recipe"
	// TypeSystem is a membership announcement authored by the system.
	TypeSystem Type = "system"
)

// ValidType reports whether t is a known message type.
func ValidType(t Type) bool {
	return t == TypeText || t == TypeImage || t == TypeRecipe || t == TypeSystem
}

// Message is a single entry in a chat's stream. Messages are append-only:
// after creation only the reactions map and the edit pair mutate.
type Message struct {
	ID           string
	ChatID       string
	Sender       Sender
	SenderName   string
	SenderAvatar string
	Content      string
	Type         Type

	// Timestamp is server-assigned and is the sole ordering key.
	Timestamp time.Time

	Edited   bool
	EditedAt *time.Time

	// ReplyTo is an advisory link to another message; no validation that
	// the target exists or belongs to the same chat.
	ReplyTo string

	// Reactions maps an emoji to the set of user ids who reacted with it.
	Reactions map[string][]string
}

// New builds a user-authored message. The timestamp stays zero until the
// store assigns it on write.
func New(chatID string, sender Sender, content string, msgType Type) (*Message, error) {
	if chatID == "" {
		return nil, errs.ErrInvalidInput
	}
	if content == "" {
		return nil, errs.ErrInvalidInput
	}
	if msgType == "" {
		msgType = TypeText
	}
	if !ValidType(msgType) {
		return nil, errs.ErrInvalidInput
	}

	return &Message{
		ChatID:  chatID,
		Sender:  sender,
		Content: content,
		Type:    msgType,
	}, nil
}

// NewSystem builds a system announcement for a chat.
func NewSystem(chatID, content string) (*Message, error) {
	msg, err := New(chatID, SystemSender(), content, TypeSystem)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// HasReaction reports whether userID reacted to the message with emoji.
func (m *Message) HasReaction(emoji, userID string) bool {
	return slices.Contains(m.Reactions[emoji], userID)
}

// AddReaction records a reaction. Adding the same emoji twice for the
// same user is a no-op; the return value reports whether anything changed.
func (m *Message) AddReaction(emoji, userID string) bool {
	if emoji == "" || userID == "" {
		return false
	}
	if m.HasReaction(emoji, userID) {
		return false
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true
}

// RemoveReaction withdraws a reaction. Removing a reaction the user never
// added is a no-op; removing the last user for an emoji deletes the key so
// no empty entries persist.
func (m *Message) RemoveReaction(emoji, userID string) bool {
	users := m.Reactions[emoji]
	if !slices.Contains(users, userID) {
		return false
	}

	remaining := slices.DeleteFunc(slices.Clone(users), func(id string) bool {
		return id == userID
	})
	if len(remaining) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = remaining
	}
	return true
}

// Edit replaces the content and marks the message edited. Only the author
// may edit; system messages are never editable.
func (m *Message) Edit(newContent string, editorID string) error {
	if newContent == "" {
		return errs.ErrInvalidInput
	}
	authorID, ok := m.Sender.UserID()
	if !ok || authorID != editorID {
		return errs.ErrForbidden
	}

	m.Content = newContent
	m.Edited = true
	now := time.Now().UTC()
	m.EditedAt = &now
	return nil
}

// IsReply reports whether the message carries an advisory reply link.
func (m *Message) IsReply() bool { return m.ReplyTo != "" }
