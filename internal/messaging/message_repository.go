package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/store"
)

const (
	// lastMessagePreviewLength bounds the chat-list preview cache.
	lastMessagePreviewLength = 100

	// DefaultSnapshotWindow is the number of most recent messages a live
	// subscription delivers. Older messages are not paginated.
	DefaultSnapshotWindow = 50
)

// SendParams carries the inputs of a Send call. Type defaults to text;
// ReplyTo is an advisory link left unvalidated.
type SendParams struct {
	ChatID        string
	SenderID      string
	Content       string
	SenderProfile user.Profile
	Type          message.Type
	ReplyTo       string
}

// MessageRepository owns the message lifecycle: sends, system
// announcements, reaction mutation, and live windowed subscriptions.
type MessageRepository struct {
	messages store.Collection
	chats    store.Collection
	window   int
	logger   *slog.Logger
}

// MessageRepoOption configures a MessageRepository.
type MessageRepoOption func(*MessageRepository)

// WithMessageLogger sets the logger for the repository.
func WithMessageLogger(logger *slog.Logger) MessageRepoOption {
	return func(r *MessageRepository) {
		r.logger = logger
	}
}

// WithSnapshotWindow overrides the live subscription window size.
func WithSnapshotWindow(window int) MessageRepoOption {
	return func(r *MessageRepository) {
		if window > 0 {
			r.window = window
		}
	}
}

// NewMessageRepository creates a repository over the store's message and
// chat collections. The chat handle exists solely for the last-message
// cache side effect of Send.
func NewMessageRepository(s store.Store, opts ...MessageRepoOption) *MessageRepository {
	r := &MessageRepository{
		messages: s.Collection(messagesCollection),
		chats:    s.Collection(chatsCollection),
		window:   DefaultSnapshotWindow,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send appends a message with a server-assigned timestamp and sender
// fields snapshotted from the profile at call time. As a side effect the
// parent chat's lastMessage cache and updatedAt are refreshed. The two
// writes are not transactional: a failure between them leaves the message
// persisted with a stale chat preview, an accepted consistency gap.
func (r *MessageRepository) Send(ctx context.Context, p SendParams) (*message.Message, error) {
	sender, err := message.UserSender(p.SenderID)
	if err != nil {
		return nil, err
	}

	msg, err := message.New(p.ChatID, sender, p.Content, p.Type)
	if err != nil {
		return nil, err
	}
	msg.SenderName = p.SenderProfile.DisplayName
	msg.SenderAvatar = p.SenderProfile.AvatarURL
	msg.ReplyTo = p.ReplyTo

	stored, err := r.create(ctx, msg)
	if err != nil {
		return nil, err
	}

	preview := chat.LastMessage{
		Content:   truncate(stored.Content, lastMessagePreviewLength),
		SenderID:  p.SenderID,
		Timestamp: stored.Timestamp,
	}
	err = r.chats.Update(ctx, p.ChatID, store.Fields{
		"last_message": lastMessageFields(preview),
		"updated_at":   store.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update chat preview: %w", err)
	}

	return stored, nil
}

// SendSystemMessage appends a system announcement. It deliberately leaves
// the chat's lastMessage cache and updatedAt untouched so membership
// announcements never surface in chat-list previews.
func (r *MessageRepository) SendSystemMessage(ctx context.Context, chatID, content string) (*message.Message, error) {
	msg, err := message.NewSystem(chatID, content)
	if err != nil {
		return nil, err
	}
	return r.create(ctx, msg)
}

// create inserts the message and reads it back to learn the assigned
// timestamp.
func (r *MessageRepository) create(ctx context.Context, msg *message.Message) (*message.Message, error) {
	fields := messageFields(msg)
	fields["timestamp"] = store.ServerTimestamp

	id, err := r.messages.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	doc, err := r.messages.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read back message: %w", err)
	}
	if doc == nil {
		return nil, errs.ErrNotFound
	}
	return messageFromDocument(*doc), nil
}

// GetMessage is a point lookup; an absent id yields (nil, nil).
func (r *MessageRepository) GetMessage(ctx context.Context, messageID string) (*message.Message, error) {
	doc, err := r.messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return messageFromDocument(*doc), nil
}

// AddReaction records a reaction on a message. Duplicate adds are no-ops.
// The mutation is a read-modify-write without an optimistic check;
// concurrent reactions racing on the read can lose an update, an accepted
// risk of this design.
func (r *MessageRepository) AddReaction(ctx context.Context, messageID, emoji, userID string) error {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errs.ErrNotFound
	}

	if !msg.AddReaction(emoji, userID) {
		return nil
	}
	return r.writeReactions(ctx, msg)
}

// RemoveReaction withdraws a reaction. Removing one the user never added
// is a no-op; the last removal for an emoji deletes its key entirely.
func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID, emoji, userID string) error {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errs.ErrNotFound
	}

	if !msg.RemoveReaction(emoji, userID) {
		return nil
	}
	return r.writeReactions(ctx, msg)
}

func (r *MessageRepository) writeReactions(ctx context.Context, msg *message.Message) error {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	if err := r.messages.Update(ctx, msg.ID, store.Fields{"reactions": reactions}); err != nil {
		return fmt.Errorf("failed to write reactions: %w", err)
	}
	return nil
}

// Edit replaces a message's content, marking it edited. Author-only; the
// chat's lastMessage cache is not revised.
func (r *MessageRepository) Edit(ctx context.Context, messageID, editorID, content string) (*message.Message, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errs.ErrNotFound
	}

	if err = msg.Edit(content, editorID); err != nil {
		return nil, err
	}

	err = r.messages.Update(ctx, msg.ID, store.Fields{
		"content":   msg.Content,
		"edited":    true,
		"edited_at": *msg.EditedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return msg, nil
}

// SubscribeToMessages registers a live listener on a chat's stream. Every
// snapshot is re-sorted ascending by timestamp and truncated client-side
// to the most recent window entries; the callback always receives the
// full current window. A burst larger than the window between two
// deliveries means its earliest messages never reach a fresh subscriber —
// a deliberate bound, there is no older-message pagination.
func (r *MessageRepository) SubscribeToMessages(
	ctx context.Context,
	chatID string,
	fn func(messages []*message.Message),
) (store.Unsubscribe, error) {
	window := r.window
	return r.messages.Subscribe(ctx, store.Filter{"chat_id": chatID}, func(docs []store.Document) {
		msgs := make([]*message.Message, 0, len(docs))
		for _, doc := range docs {
			msgs = append(msgs, messageFromDocument(doc))
		}
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		})
		if len(msgs) > window {
			msgs = msgs[len(msgs)-window:]
		}
		fn(msgs)
	})
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
