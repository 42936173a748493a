// Package chat defines the conversation entity of the messaging core.
package chat

import (
	"slices"
	"time"

	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/user"
)

// Type represents the kind of conversation.
type Type string

const (
	// TypeDirect is a two-party conversation with immutable membership.
	TypeDirect Type = "direct"
	// TypeGroup is a multi-party conversation joined by invite code.
	TypeGroup Type = "group"
)

// DirectParticipants is the fixed membership size of a direct chat.
const DirectParticipants = 2

// Default group settings.
const (
	DefaultMaxMembers = 100
)

// Settings holds group-only configuration. Direct chats carry none.
type Settings struct {
	AllowInvites bool `json:"allow_invites"`
	IsPublic     bool `json:"is_public"`
	MaxMembers   int  `json:"max_members"`
}

// DefaultSettings returns the settings applied to a freshly created group.
func DefaultSettings() Settings {
	return Settings{
		AllowInvites: true,
		IsPublic:     false,
		MaxMembers:   DefaultMaxMembers,
	}
}

// LastMessage is the denormalized preview cache kept on the chat document
// so chat lists render without a join against the message collection.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a conversation, either direct or group. Group-only fields are
// zero-valued on direct chats and must be ignored there.
type Chat struct {
	ID                 string
	Type               Type
	Participants       []string
	ParticipantNames   map[string]string
	ParticipantAvatars map[string]string

	// Group-only fields.
	Name        string
	Description string
	Avatar      string
	CreatedBy   string
	InviteCode  string
	Settings    *Settings

	LastMessage *LastMessage
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDirect builds a direct chat between two users, seeding both
// denormalized maps. The participant order carries no meaning.
func NewDirect(userA, userB string, profileA, profileB user.Profile) (*Chat, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, errs.ErrInvalidInput
	}

	return &Chat{
		Type:         TypeDirect,
		Participants: []string{userA, userB},
		ParticipantNames: map[string]string{
			userA: profileA.DisplayName,
			userB: profileB.DisplayName,
		},
		ParticipantAvatars: map[string]string{
			userA: profileA.AvatarURL,
			userB: profileB.AvatarURL,
		},
		IsActive: true,
	}, nil
}

// NewGroup builds a group chat. The creator joins immediately with
// denormalized fields; initial participants are listed as members but
// their display fields stay empty until they join explicitly.
func NewGroup(
	creatorID, name, description string,
	initialParticipants []string,
	creatorProfile user.Profile,
	inviteCode string,
) (*Chat, error) {
	if creatorID == "" {
		return nil, errs.ErrInvalidInput
	}
	if name == "" {
		return nil, errs.ErrInvalidInput
	}
	if inviteCode == "" {
		return nil, errs.ErrInvalidInput
	}

	participants := []string{creatorID}
	for _, id := range initialParticipants {
		if id == "" || slices.Contains(participants, id) {
			continue
		}
		participants = append(participants, id)
	}

	settings := DefaultSettings()

	return &Chat{
		Type:         TypeGroup,
		Participants: participants,
		ParticipantNames: map[string]string{
			creatorID: creatorProfile.DisplayName,
		},
		ParticipantAvatars: map[string]string{
			creatorID: creatorProfile.AvatarURL,
		},
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		InviteCode:  inviteCode,
		Settings:    &settings,
		IsActive:    true,
	}, nil
}

// IsDirect reports whether the chat is a two-party conversation.
func (c *Chat) IsDirect() bool { return c.Type == TypeDirect }

// IsGroup reports whether the chat is a multi-party conversation.
func (c *Chat) IsGroup() bool { return c.Type == TypeGroup }

// HasParticipant reports whether userID is a member.
func (c *Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// MaxMembers returns the configured member limit, falling back to the
// default when settings are absent.
func (c *Chat) MaxMembers() int {
	if c.Settings == nil || c.Settings.MaxMembers <= 0 {
		return DefaultMaxMembers
	}
	return c.Settings.MaxMembers
}

// IsFull reports whether the group is at its member limit.
func (c *Chat) IsFull() bool {
	return len(c.Participants) >= c.MaxMembers()
}

// AddParticipant appends a member and inserts their denormalized display
// fields. Membership of direct chats never mutates after creation.
func (c *Chat) AddParticipant(userID string, profile user.Profile) error {
	if userID == "" {
		return errs.ErrInvalidInput
	}
	if !c.IsGroup() {
		return errs.ErrInvalidChatType
	}
	if c.HasParticipant(userID) {
		return errs.ErrAlreadyExists
	}
	if c.IsFull() {
		return errs.ErrCapacityExceeded
	}

	c.Participants = append(c.Participants, userID)
	c.setProfile(userID, profile)
	return nil
}

// RemoveParticipant removes a member together with both denormalized
// entries. The last member may leave; the chat then has zero participants.
func (c *Chat) RemoveParticipant(userID string) error {
	if userID == "" {
		return errs.ErrInvalidInput
	}
	if !c.IsGroup() {
		return errs.ErrInvalidChatType
	}
	if !c.HasParticipant(userID) {
		return errs.ErrNotFound
	}

	c.Participants = slices.DeleteFunc(slices.Clone(c.Participants), func(id string) bool {
		return id == userID
	})
	delete(c.ParticipantNames, userID)
	delete(c.ParticipantAvatars, userID)
	return nil
}

// ApplyProfile refreshes the denormalized display fields of an existing
// member. It is a no-op for non-members.
func (c *Chat) ApplyProfile(userID string, profile user.Profile) bool {
	if !c.HasParticipant(userID) {
		return false
	}
	c.setProfile(userID, profile)
	return true
}

func (c *Chat) setProfile(userID string, profile user.Profile) {
	if c.ParticipantNames == nil {
		c.ParticipantNames = make(map[string]string)
	}
	if c.ParticipantAvatars == nil {
		c.ParticipantAvatars = make(map[string]string)
	}
	c.ParticipantNames[userID] = profile.DisplayName
	c.ParticipantAvatars[userID] = profile.AvatarURL
}

// DisplayName returns the denormalized name of a member, empty if the
// member never joined explicitly.
func (c *Chat) DisplayName(userID string) string {
	return c.ParticipantNames[userID]
}
