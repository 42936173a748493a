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

// systemAnnouncer emits membership announcements into a chat's stream.
// Declared on the consumer side; the message repository implements it.
type systemAnnouncer interface {
	SendSystemMessage(ctx context.Context, chatID, content string) (*message.Message, error)
}

// ChatRepository owns the chat lifecycle: creation, invite-code joins,
// membership mutation, and live chat-list subscriptions.
type ChatRepository struct {
	chats     store.Collection
	announcer systemAnnouncer
	codes     *chat.CodeGenerator
	logger    *slog.Logger
}

// ChatRepoOption configures a ChatRepository.
type ChatRepoOption func(*ChatRepository)

// WithChatLogger sets the logger for the repository.
func WithChatLogger(logger *slog.Logger) ChatRepoOption {
	return func(r *ChatRepository) {
		r.logger = logger
	}
}

// WithCodeGenerator overrides the invite-code generator, letting tests
// force collisions with a degenerate alphabet.
func WithCodeGenerator(codes *chat.CodeGenerator) ChatRepoOption {
	return func(r *ChatRepository) {
		r.codes = codes
	}
}

// NewChatRepository creates a repository over the store's chat collection.
func NewChatRepository(s store.Store, announcer systemAnnouncer, opts ...ChatRepoOption) *ChatRepository {
	r := &ChatRepository{
		chats:     s.Collection(chatsCollection),
		announcer: announcer,
		codes:     chat.NewCodeGenerator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateDirectChat returns the id of the direct chat between the unordered
// pair, creating it on first call. Repeat calls in either argument order
// return the same id.
func (r *ChatRepository) CreateDirectChat(
	ctx context.Context,
	userA, userB string,
	profileA, profileB user.Profile,
) (string, error) {
	existing, err := r.FindDirectChat(ctx, userA, userB)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	c, err := chat.NewDirect(userA, userB, profileA, profileB)
	if err != nil {
		return "", err
	}

	fields := chatFields(c)
	fields["created_at"] = store.ServerTimestamp
	fields["updated_at"] = store.ServerTimestamp

	id, err := r.chats.Create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create direct chat: %w", err)
	}

	r.logger.InfoContext(ctx, "direct chat created",
		slog.String("chat_id", id),
	)
	return id, nil
}

// FindDirectChat returns the first active direct chat whose participant
// set is exactly {userA, userB}, or nil when none exists. It supports
// create idempotence only, not general relationship queries.
func (r *ChatRepository) FindDirectChat(ctx context.Context, userA, userB string) (*chat.Chat, error) {
	docs, err := r.chats.Find(ctx, store.Filter{
		"type":         string(chat.TypeDirect),
		"is_active":    true,
		"participants": userA,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query direct chats: %w", err)
	}

	for _, doc := range docs {
		c := chatFromDocument(doc)
		if c.HasParticipant(userB) {
			return c, nil
		}
	}
	return nil, nil
}

// CreateGroupChat creates a group for the creator plus any initial
// participants, issues a fresh invite code, and announces the creation.
// Denormalized display fields are seeded for the creator only; initial
// participants gain theirs when they join explicitly.
func (r *ChatRepository) CreateGroupChat(
	ctx context.Context,
	creatorID, name, description string,
	initialParticipants []string,
	creatorProfile user.Profile,
) (string, error) {
	code, err := r.codes.Generate()
	if err != nil {
		return "", err
	}

	c, err := chat.NewGroup(creatorID, name, description, initialParticipants, creatorProfile, code)
	if err != nil {
		return "", err
	}

	fields := chatFields(c)
	fields["created_at"] = store.ServerTimestamp
	fields["updated_at"] = store.ServerTimestamp

	id, err := r.chats.Create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create group chat: %w", err)
	}

	content := fmt.Sprintf("%s created the group", creatorProfile.DisplayName)
	if _, err = r.announcer.SendSystemMessage(ctx, id, content); err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "group chat created",
		slog.String("chat_id", id),
		slog.String("name", name),
	)
	return id, nil
}

// JoinGroupByInviteCode adds the caller to the group matching the code.
// Returns errs.ErrNotFound when no active group carries the code,
// the existing chat id without mutation when the caller is already a
// member, and errs.ErrCapacityExceeded when the group is full.
func (r *ChatRepository) JoinGroupByInviteCode(
	ctx context.Context,
	code, userID string,
	profile user.Profile,
) (string, error) {
	c, err := r.GetChatByInviteCode(ctx, code)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", errs.ErrNotFound
	}

	if c.HasParticipant(userID) {
		return c.ID, nil
	}
	if c.IsFull() {
		return "", errs.ErrCapacityExceeded
	}

	if err = c.AddParticipant(userID, profile); err != nil {
		return "", err
	}

	err = r.chats.Update(ctx, c.ID, store.Fields{
		"participants":        c.Participants,
		"participant_names":   c.ParticipantNames,
		"participant_avatars": c.ParticipantAvatars,
		"updated_at":          store.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to join group: %w", err)
	}

	content := fmt.Sprintf("%s joined the group", profile.DisplayName)
	if _, err = r.announcer.SendSystemMessage(ctx, c.ID, content); err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "user joined group",
		slog.String("chat_id", c.ID),
	)
	return c.ID, nil
}

// LeaveGroup removes the caller from a group together with both
// denormalized entries and announces the departure. The last member may
// leave; the emptied chat is not deleted.
func (r *ChatRepository) LeaveGroup(ctx context.Context, chatID, userID string, profile user.Profile) error {
	c, err := r.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if c == nil {
		return errs.ErrNotFound
	}
	if !c.IsGroup() {
		return errs.ErrInvalidChatType
	}

	if err = c.RemoveParticipant(userID); err != nil {
		return err
	}

	err = r.chats.Update(ctx, c.ID, store.Fields{
		"participants":        c.Participants,
		"participant_names":   c.ParticipantNames,
		"participant_avatars": c.ParticipantAvatars,
		"updated_at":          store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}

	content := fmt.Sprintf("%s left the group", profile.DisplayName)
	if _, err = r.announcer.SendSystemMessage(ctx, c.ID, content); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "user left group",
		slog.String("chat_id", c.ID),
	)
	return nil
}

// GetChatByID is a point lookup; an absent id yields (nil, nil).
func (r *ChatRepository) GetChatByID(ctx context.Context, chatID string) (*chat.Chat, error) {
	doc, err := r.chats.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return chatFromDocument(*doc), nil
}

// GetChatByInviteCode resolves an invite code to its active group chat;
// an unknown code yields (nil, nil). If a code collision ever occurred,
// the first match wins.
func (r *ChatRepository) GetChatByInviteCode(ctx context.Context, code string) (*chat.Chat, error) {
	if code == "" {
		return nil, nil
	}
	docs, err := r.chats.Find(ctx, store.Filter{
		"type":        string(chat.TypeGroup),
		"invite_code": code,
		"is_active":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return chatFromDocument(docs[0]), nil
}

// UpdateParticipantProfile applies a profile change to the denormalized
// display fields of every active chat the user participates in.
func (r *ChatRepository) UpdateParticipantProfile(ctx context.Context, userID string, profile user.Profile) error {
	docs, err := r.chats.Find(ctx, store.Filter{
		"participants": userID,
		"is_active":    true,
	})
	if err != nil {
		return fmt.Errorf("failed to query user chats: %w", err)
	}

	for _, doc := range docs {
		c := chatFromDocument(doc)
		if !c.ApplyProfile(userID, profile) {
			continue
		}
		err = r.chats.Update(ctx, c.ID, store.Fields{
			"participant_names":   c.ParticipantNames,
			"participant_avatars": c.ParticipantAvatars,
			"updated_at":          store.ServerTimestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to refresh profile in chat %s: %w", c.ID, err)
		}
	}
	return nil
}

// SubscribeToUserChats registers a live listener for all chats the user
// participates in. Every snapshot is refiltered to active chats and
// re-sorted by updatedAt descending client-side; the callback always
// receives the complete fresh list, never a diff. The returned
// Unsubscribe must be called to release the listener.
func (r *ChatRepository) SubscribeToUserChats(
	ctx context.Context,
	userID string,
	fn func(chats []*chat.Chat),
) (store.Unsubscribe, error) {
	return r.chats.Subscribe(ctx, store.Filter{"participants": userID}, func(docs []store.Document) {
		chats := make([]*chat.Chat, 0, len(docs))
		for _, doc := range docs {
			c := chatFromDocument(doc)
			if !c.IsActive {
				continue
			}
			chats = append(chats, c)
		}
		sort.SliceStable(chats, func(i, j int) bool {
			return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
		})
		fn(chats)
	})
}
