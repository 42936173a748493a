// Package service exposes the messaging facade consumed by transport
// handlers: a thin composition of the chat and message repositories with
// profile resolution, adding no business rules of its own.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/messaging"
	"github.com/mixgram/mixgram/internal/store"
)

// ProfileStore is the profile surface the facade needs: lookups for
// denormalization snapshots plus the save path that fans profile changes
// out to chats.
type ProfileStore interface {
	user.ProfileLookup
	SaveProfile(ctx context.Context, userID string, profile user.Profile) error
}

// MessagingService composes the chat and message repositories into the
// operations a client needs. It chooses which repository method to call
// and resolves profiles; validation and error semantics live below it and
// pass through unreinterpreted.
type MessagingService struct {
	chats    *messaging.ChatRepository
	messages *messaging.MessageRepository
	profiles ProfileStore
	logger   *slog.Logger
}

// MessagingOption configures a MessagingService.
type MessagingOption func(*MessagingService)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) MessagingOption {
	return func(s *MessagingService) {
		s.logger = logger
	}
}

// NewMessagingService wires the facade.
func NewMessagingService(
	chats *messaging.ChatRepository,
	messages *messaging.MessageRepository,
	profiles ProfileStore,
	opts ...MessagingOption,
) *MessagingService {
	s := &MessagingService{
		chats:    chats,
		messages: messages,
		profiles: profiles,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDirectChat opens (or returns) the direct chat between two users.
func (s *MessagingService) CreateDirectChat(ctx context.Context, userA, userB string) (string, error) {
	profileA, err := s.lookupProfile(ctx, userA)
	if err != nil {
		return "", err
	}
	profileB, err := s.lookupProfile(ctx, userB)
	if err != nil {
		return "", err
	}
	return s.chats.CreateDirectChat(ctx, userA, userB, profileA, profileB)
}

// CreateGroupChat creates a group on behalf of the creator.
func (s *MessagingService) CreateGroupChat(
	ctx context.Context,
	creatorID, name, description string,
	initialParticipants []string,
) (string, error) {
	profile, err := s.lookupProfile(ctx, creatorID)
	if err != nil {
		return "", err
	}
	return s.chats.CreateGroupChat(ctx, creatorID, name, description, initialParticipants, profile)
}

// JoinGroupByInviteCode admits the caller to the group matching the code.
func (s *MessagingService) JoinGroupByInviteCode(ctx context.Context, code, userID string) (string, error) {
	profile, err := s.lookupProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.chats.JoinGroupByInviteCode(ctx, code, userID, profile)
}

// LeaveGroup removes the caller from a group.
func (s *MessagingService) LeaveGroup(ctx context.Context, chatID, userID string) error {
	profile, err := s.lookupProfile(ctx, userID)
	if err != nil {
		return err
	}
	return s.chats.LeaveGroup(ctx, chatID, userID, profile)
}

// GetChat is a point lookup; an absent id yields (nil, nil).
func (s *MessagingService) GetChat(ctx context.Context, chatID string) (*chat.Chat, error) {
	return s.chats.GetChatByID(ctx, chatID)
}

// SendMessage appends a message authored by the caller.
func (s *MessagingService) SendMessage(
	ctx context.Context,
	chatID, senderID, content string,
	msgType message.Type,
	replyTo string,
) (*message.Message, error) {
	profile, err := s.lookupProfile(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return s.messages.Send(ctx, messaging.SendParams{
		ChatID:        chatID,
		SenderID:      senderID,
		Content:       content,
		SenderProfile: profile,
		Type:          msgType,
		ReplyTo:       replyTo,
	})
}

// EditMessage replaces a message's content; author-only.
func (s *MessagingService) EditMessage(ctx context.Context, messageID, editorID, content string) (*message.Message, error) {
	return s.messages.Edit(ctx, messageID, editorID, content)
}

// AddReaction records a reaction on a message.
func (s *MessagingService) AddReaction(ctx context.Context, messageID, emoji, userID string) error {
	return s.messages.AddReaction(ctx, messageID, emoji, userID)
}

// RemoveReaction withdraws a reaction from a message.
func (s *MessagingService) RemoveReaction(ctx context.Context, messageID, emoji, userID string) error {
	return s.messages.RemoveReaction(ctx, messageID, emoji, userID)
}

// UpdateProfile saves a user's profile and refreshes the denormalized
// display fields across their active chats.
func (s *MessagingService) UpdateProfile(ctx context.Context, userID string, profile user.Profile) error {
	if err := s.profiles.SaveProfile(ctx, userID, profile); err != nil {
		return err
	}
	return s.chats.UpdateParticipantProfile(ctx, userID, profile)
}

// SubscribeToChats streams the caller's chat list, newest activity first.
func (s *MessagingService) SubscribeToChats(
	ctx context.Context,
	userID string,
	fn func(chats []*chat.Chat),
) (store.Unsubscribe, error) {
	return s.chats.SubscribeToUserChats(ctx, userID, fn)
}

// SubscribeToMessages streams a chat's most recent message window.
func (s *MessagingService) SubscribeToMessages(
	ctx context.Context,
	chatID string,
	fn func(messages []*message.Message),
) (store.Unsubscribe, error) {
	return s.messages.SubscribeToMessages(ctx, chatID, fn)
}

// lookupProfile resolves a user's profile for denormalization. Users who
// never saved a profile get a zero snapshot rather than an error.
func (s *MessagingService) lookupProfile(ctx context.Context, userID string) (user.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return user.Profile{}, nil
		}
		return user.Profile{}, err
	}
	return profile, nil
}
