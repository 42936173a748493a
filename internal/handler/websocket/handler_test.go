package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/handler/websocket"
	"github.com/mixgram/mixgram/internal/middleware"
	"github.com/mixgram/mixgram/internal/store"
)

// snapshotStub delivers one snapshot per subscription immediately.
type snapshotStub struct {
	chat     *chat.Chat
	messages []*message.Message
}

func (s *snapshotStub) GetChat(context.Context, string) (*chat.Chat, error) {
	return s.chat, nil
}

func (s *snapshotStub) SubscribeToChats(
	_ context.Context, _ string, fn func(chats []*chat.Chat),
) (store.Unsubscribe, error) {
	if s.chat != nil {
		fn([]*chat.Chat{s.chat})
	} else {
		fn(nil)
	}
	return func() {}, nil
}

func (s *snapshotStub) SubscribeToMessages(
	_ context.Context, _ string, fn func(messages []*message.Message),
) (store.Unsubscribe, error) {
	fn(s.messages)
	return func() {}, nil
}

func groupFixture(t *testing.T) *chat.Chat {
	t.Helper()
	ch, err := chat.NewGroup(
		"alice-id", "Mixology Club", "", []string{"bob-id"},
		user.Profile{DisplayName: "Alice"}, "AB12CD34")
	require.NoError(t, err)
	ch.ID = "chat-1"
	return ch
}

func startServer(t *testing.T, h *websocket.Handler) *httptest.Server {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readFrame(t *testing.T, conn *gorilla.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestHandler_RejectsUnauthenticated(t *testing.T) {
	h := websocket.NewHandler(&snapshotStub{})
	srv := startServer(t, h)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_ChatListSnapshotOnConnect(t *testing.T) {
	stub := &snapshotStub{chat: groupFixture(t)}
	h := websocket.NewHandler(stub, websocket.WithTrustUserIDHeader(true))
	srv := startServer(t, h)

	header := http.Header{}
	header.Set(middleware.UserIDHeader, "alice-id")
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	frame := readFrame(t, conn)
	assert.Equal(t, "chats", frame["type"])

	chats, ok := frame["chats"].([]any)
	require.True(t, ok)
	require.Len(t, chats, 1)
	first, ok := chats[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Mixology Club", first["name"])
}

func TestHandler_SubscribeToMessages(t *testing.T) {
	sender, err := message.UserSender("alice-id")
	require.NoError(t, err)
	msg, err := message.New("chat-1", sender, "Shaken, not stirred", message.TypeText)
	require.NoError(t, err)
	msg.ID = "msg-1"

	stub := &snapshotStub{chat: groupFixture(t), messages: []*message.Message{msg}}
	h := websocket.NewHandler(stub, websocket.WithTrustUserIDHeader(true))
	srv := startServer(t, h)

	header := http.Header{}
	header.Set(middleware.UserIDHeader, "alice-id")
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// First frame is the chat-list snapshot.
	frame := readFrame(t, conn)
	require.Equal(t, "chats", frame["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":    "subscribe",
		"chat_id": "chat-1",
	}))

	// The message snapshot and the ack both arrive; order may vary.
	seen := map[string]map[string]any{}
	for range 2 {
		f := readFrame(t, conn)
		seen[f["type"].(string)] = f
	}

	ack, ok := seen["ack"]
	require.True(t, ok)
	assert.Equal(t, "subscribed", ack["action"])

	msgs, ok := seen["messages"]
	require.True(t, ok)
	assert.Equal(t, "chat-1", msgs["chat_id"])
	payload, ok := msgs["messages"].([]any)
	require.True(t, ok)
	require.Len(t, payload, 1)
	first, ok := payload[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Shaken, not stirred", first["content"])
}

func TestHandler_SubscribeToForeignChatRejected(t *testing.T) {
	stub := &snapshotStub{chat: groupFixture(t)}
	h := websocket.NewHandler(stub, websocket.WithTrustUserIDHeader(true))
	srv := startServer(t, h)

	header := http.Header{}
	header.Set(middleware.UserIDHeader, "mallory-id")
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	frame := readFrame(t, conn)
	require.Equal(t, "chats", frame["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":    "subscribe",
		"chat_id": "chat-1",
	}))

	frame = readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
}

func TestHandler_Ping(t *testing.T) {
	stub := &snapshotStub{}
	h := websocket.NewHandler(stub, websocket.WithTrustUserIDHeader(true))
	srv := startServer(t, h)

	header := http.Header{}
	header.Set(middleware.UserIDHeader, "alice-id")
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	frame := readFrame(t, conn)
	require.Equal(t, "chats", frame["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	frame = readFrame(t, conn)
	assert.Equal(t, "pong", frame["type"])
}
