package message

import "github.com/mixgram/mixgram/internal/domain/errs"

// systemSenderID is the wire encoding of the system sender. It exists
// only at the serialization boundary; the domain carries Sender instead
// of an overloaded string, so a real user id can never collide with it.
const systemSenderID = "system"

// Sender identifies the author of a message: either a user or the system.
type Sender struct {
	id     string
	system bool
}

// UserSender returns the sender value for a human user.
func UserSender(userID string) (Sender, error) {
	if userID == "" || userID == systemSenderID {
		return Sender{}, errs.ErrInvalidInput
	}
	return Sender{id: userID}, nil
}

// SystemSender returns the sender value for system-generated messages.
func SystemSender() Sender {
	return Sender{system: true}
}

// ParseSender decodes the wire form of a sender id.
func ParseSender(wire string) (Sender, error) {
	if wire == systemSenderID {
		return SystemSender(), nil
	}
	return UserSender(wire)
}

// IsSystem reports whether the message was authored by no human user.
func (s Sender) IsSystem() bool { return s.system }

// UserID returns the user id and true for user senders.
func (s Sender) UserID() (string, bool) {
	if s.system {
		return "", false
	}
	return s.id, true
}

// String returns the wire form: the user id, or "system".
func (s Sender) String() string {
	if s.system {
		return systemSenderID
	}
	return s.id
}
