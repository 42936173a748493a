//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/messaging"
	"github.com/mixgram/mixgram/internal/service"
)

func newMongoService(t *testing.T) *service.MessagingService {
	t.Helper()

	s := newMongoStore(t)
	msgRepo := messaging.NewMessageRepository(s)
	chatRepo := messaging.NewChatRepository(s, msgRepo)
	profiles := messaging.NewProfileRepository(s)
	return service.NewMessagingService(chatRepo, msgRepo, profiles)
}

func TestMessagingOverMongo_DirectChatFlow(t *testing.T) {
	svc := newMongoService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateProfile(ctx, "alice-id", user.Profile{DisplayName: "Alice"}))

	chatID, err := svc.CreateDirectChat(ctx, "alice-id", "bob-id")
	require.NoError(t, err)

	again, err := svc.CreateDirectChat(ctx, "bob-id", "alice-id")
	require.NoError(t, err)
	assert.Equal(t, chatID, again, "direct chat creation is idempotent across argument order")

	msg, err := svc.SendMessage(ctx, chatID, "alice-id", "Shaken, not stirred", message.TypeText, "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", msg.SenderName)
	assert.False(t, msg.Timestamp.IsZero())

	c, err := svc.GetChat(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "Shaken, not stirred", c.LastMessage.Content)
}

func TestMessagingOverMongo_GroupJoinAndLiveSnapshots(t *testing.T) {
	svc := newMongoService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateProfile(ctx, "alice-id", user.Profile{DisplayName: "Alice"}))
	require.NoError(t, svc.UpdateProfile(ctx, "bob-id", user.Profile{DisplayName: "Bob"}))

	chatID, err := svc.CreateGroupChat(ctx, "alice-id", "Mixology Club", "", nil)
	require.NoError(t, err)
	created, err := svc.GetChat(ctx, chatID)
	require.NoError(t, err)

	var mu sync.Mutex
	var bobChats []*chat.Chat
	unsub, err := svc.SubscribeToChats(ctx, "bob-id", func(chats []*chat.Chat) {
		mu.Lock()
		bobChats = chats
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	joinedID, err := svc.JoinGroupByInviteCode(ctx, created.InviteCode, "bob-id")
	require.NoError(t, err)
	assert.Equal(t, chatID, joinedID)

	// Bob's chat list updates without polling once the join lands.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bobChats) == 1 && bobChats[0].ID == chatID
	}, snapshotWait, snapshotTick)

	c, err := svc.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.ParticipantNames["bob-id"])
}

func TestMessagingOverMongo_ReactionsPersist(t *testing.T) {
	svc := newMongoService(t)
	ctx := context.Background()

	chatID, err := svc.CreateDirectChat(ctx, "alice-id", "bob-id")
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, chatID, "alice-id", "cheers", message.TypeText, "")
	require.NoError(t, err)

	require.NoError(t, svc.AddReaction(ctx, msg.ID, "🍸", "bob-id"))
	require.NoError(t, svc.AddReaction(ctx, msg.ID, "🍸", "alice-id"))
	require.NoError(t, svc.RemoveReaction(ctx, msg.ID, "🍸", "bob-id"))

	var mu sync.Mutex
	var latest []*message.Message
	unsub, err := svc.SubscribeToMessages(ctx, chatID, func(msgs []*message.Message) {
		mu.Lock()
		latest = msgs
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, latest, 1)
	assert.Equal(t, []string{"alice-id"}, latest[0].Reactions["🍸"])
}
