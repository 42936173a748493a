// Package messaging owns the chat and message lifecycles on top of the
// document store adapter: creation, invite-code joins, delivery ordering,
// reaction semantics, and live snapshot subscriptions.
package messaging

import (
	"time"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/store"
)

// Collection names.
const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
	usersCollection    = "users"
)

// chatFields serializes a chat for its initial write. Timestamps are set
// by the caller (server sentinels).
func chatFields(c *chat.Chat) store.Fields {
	fields := store.Fields{
		"type":                string(c.Type),
		"participants":        c.Participants,
		"participant_names":   c.ParticipantNames,
		"participant_avatars": c.ParticipantAvatars,
		"is_active":           c.IsActive,
	}
	if c.IsGroup() {
		fields["name"] = c.Name
		fields["description"] = c.Description
		fields["avatar"] = c.Avatar
		fields["created_by"] = c.CreatedBy
		fields["invite_code"] = c.InviteCode
		fields["settings"] = settingsFields(c.Settings)
	}
	return fields
}

func settingsFields(s *chat.Settings) store.Fields {
	if s == nil {
		return nil
	}
	return store.Fields{
		"allow_invites": s.AllowInvites,
		"is_public":     s.IsPublic,
		"max_members":   s.MaxMembers,
	}
}

func lastMessageFields(lm chat.LastMessage) store.Fields {
	return store.Fields{
		"content":   lm.Content,
		"sender_id": lm.SenderID,
		"timestamp": lm.Timestamp,
	}
}

func chatFromDocument(doc store.Document) *chat.Chat {
	c := &chat.Chat{
		ID:                 doc.ID,
		Type:               chat.Type(doc.String("type")),
		Participants:       asStringSlice(doc.Fields["participants"]),
		ParticipantNames:   asStringMap(doc.Fields["participant_names"]),
		ParticipantAvatars: asStringMap(doc.Fields["participant_avatars"]),
		Name:               doc.String("name"),
		Description:        doc.String("description"),
		Avatar:             doc.String("avatar"),
		CreatedBy:          doc.String("created_by"),
		InviteCode:         doc.String("invite_code"),
		IsActive:           doc.Bool("is_active"),
		CreatedAt:          doc.Time("created_at"),
		UpdatedAt:          doc.Time("updated_at"),
	}

	if settings := asFields(doc.Fields["settings"]); settings != nil {
		c.Settings = &chat.Settings{
			AllowInvites: asBool(settings["allow_invites"]),
			IsPublic:     asBool(settings["is_public"]),
			MaxMembers:   asInt(settings["max_members"]),
		}
	}
	if lm := asFields(doc.Fields["last_message"]); lm != nil {
		c.LastMessage = &chat.LastMessage{
			Content:   asString(lm["content"]),
			SenderID:  asString(lm["sender_id"]),
			Timestamp: asTime(lm["timestamp"]),
		}
	}
	return c
}

// messageFields serializes a message for its initial write. The timestamp
// is set by the caller (server sentinel).
func messageFields(m *message.Message) store.Fields {
	fields := store.Fields{
		"chat_id":     m.ChatID,
		"sender_id":   m.Sender.String(),
		"sender_name": m.SenderName,
		"content":     m.Content,
		"type":        string(m.Type),
	}
	if m.SenderAvatar != "" {
		fields["sender_avatar"] = m.SenderAvatar
	}
	if m.ReplyTo != "" {
		fields["reply_to"] = m.ReplyTo
	}
	return fields
}

func messageFromDocument(doc store.Document) *message.Message {
	sender, err := message.ParseSender(doc.String("sender_id"))
	if err != nil {
		sender = message.SystemSender()
	}

	m := &message.Message{
		ID:           doc.ID,
		ChatID:       doc.String("chat_id"),
		Sender:       sender,
		SenderName:   doc.String("sender_name"),
		SenderAvatar: doc.String("sender_avatar"),
		Content:      doc.String("content"),
		Type:         message.Type(doc.String("type")),
		Timestamp:    doc.Time("timestamp"),
		Edited:       doc.Bool("edited"),
		ReplyTo:      doc.String("reply_to"),
		Reactions:    asReactions(doc.Fields["reactions"]),
	}
	if editedAt := doc.Time("edited_at"); !editedAt.IsZero() {
		m.EditedAt = &editedAt
	}
	return m
}

// Decode helpers tolerant to both native Go values (memory store) and
// normalized BSON values (Mongo store).

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asFields(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asStringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

func asReactions(v any) map[string][]string {
	switch m := v.(type) {
	case map[string][]string:
		return m
	case map[string]any:
		out := make(map[string][]string, len(m))
		for emoji, users := range m {
			out[emoji] = asStringSlice(users)
		}
		return out
	default:
		return nil
	}
}
