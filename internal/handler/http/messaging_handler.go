// Package httphandler exposes the messaging REST API.
package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/message"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/infrastructure/httpserver"
	"github.com/mixgram/mixgram/internal/middleware"
)

// Validation constants for the messaging handler.
const (
	maxChatNameLength    = 100
	maxDescriptionLength = 500
)

// MessagingService defines the service surface the handler consumes.
// Declared on the consumer side per project guidelines.
type MessagingService interface {
	CreateDirectChat(ctx context.Context, userA, userB string) (string, error)
	CreateGroupChat(ctx context.Context, creatorID, name, description string, initialParticipants []string) (string, error)
	JoinGroupByInviteCode(ctx context.Context, code, userID string) (string, error)
	LeaveGroup(ctx context.Context, chatID, userID string) error
	GetChat(ctx context.Context, chatID string) (*chat.Chat, error)
	SendMessage(ctx context.Context, chatID, senderID, content string, msgType message.Type, replyTo string) (*message.Message, error)
	EditMessage(ctx context.Context, messageID, editorID, content string) (*message.Message, error)
	AddReaction(ctx context.Context, messageID, emoji, userID string) error
	RemoveReaction(ctx context.Context, messageID, emoji, userID string) error
	UpdateProfile(ctx context.Context, userID string, profile user.Profile) error
}

// CreateDirectChatRequest represents the request to open a direct chat.
type CreateDirectChatRequest struct {
	ParticipantID string `json:"participant_id"`
}

// CreateGroupChatRequest represents the request to create a group chat.
type CreateGroupChatRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ParticipantIDs []string `json:"participant_ids"`
}

// JoinGroupRequest represents the request to join a group by invite code.
type JoinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

// SendMessageRequest represents the request to send a message.
type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	ReplyTo string `json:"reply_to"`
}

// EditMessageRequest represents the request to edit a message.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ReactionRequest represents the request to add a reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// UpdateProfileRequest represents the request to update the caller's profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ChatIDResponse carries a chat ID in API responses.
type ChatIDResponse struct {
	ChatID string `json:"chat_id"`
}

// LastMessageResponse represents the denormalized last-message preview.
type LastMessageResponse struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SettingsResponse represents group settings in API responses.
type SettingsResponse struct {
	AllowInvites bool `json:"allow_invites"`
	IsPublic     bool `json:"is_public"`
	MaxMembers   int  `json:"max_members"`
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ID                 string               `json:"id"`
	Type               string               `json:"type"`
	Participants       []string             `json:"participants"`
	ParticipantNames   map[string]string    `json:"participant_names"`
	ParticipantAvatars map[string]string    `json:"participant_avatars"`
	Name               string               `json:"name,omitempty"`
	Description        string               `json:"description,omitempty"`
	Avatar             string               `json:"avatar,omitempty"`
	CreatedBy          string               `json:"created_by,omitempty"`
	InviteCode         string               `json:"invite_code,omitempty"`
	Settings           *SettingsResponse    `json:"settings,omitempty"`
	LastMessage        *LastMessageResponse `json:"last_message,omitempty"`
	IsActive           bool                 `json:"is_active"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID           string              `json:"id"`
	ChatID       string              `json:"chat_id"`
	SenderID     string              `json:"sender_id"`
	SenderName   string              `json:"sender_name,omitempty"`
	SenderAvatar string              `json:"sender_avatar,omitempty"`
	Content      string              `json:"content"`
	Type         string              `json:"type"`
	Timestamp    time.Time           `json:"timestamp"`
	Edited       bool                `json:"edited"`
	EditedAt     *time.Time          `json:"edited_at,omitempty"`
	ReplyTo      string              `json:"reply_to,omitempty"`
	Reactions    map[string][]string `json:"reactions,omitempty"`
}

// ToChatResponse converts a domain chat to its API representation.
func ToChatResponse(c *chat.Chat) ChatResponse {
	resp := ChatResponse{
		ID:                 c.ID,
		Type:               string(c.Type),
		Participants:       c.Participants,
		ParticipantNames:   c.ParticipantNames,
		ParticipantAvatars: c.ParticipantAvatars,
		Name:               c.Name,
		Description:        c.Description,
		Avatar:             c.Avatar,
		CreatedBy:          c.CreatedBy,
		InviteCode:         c.InviteCode,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.Settings != nil {
		resp.Settings = &SettingsResponse{
			AllowInvites: c.Settings.AllowInvites,
			IsPublic:     c.Settings.IsPublic,
			MaxMembers:   c.Settings.MaxMembers,
		}
	}
	if c.LastMessage != nil {
		resp.LastMessage = &LastMessageResponse{
			Content:   c.LastMessage.Content,
			SenderID:  c.LastMessage.SenderID,
			Timestamp: c.LastMessage.Timestamp,
		}
	}
	return resp
}

// ToMessageResponse converts a domain message to its API representation.
func ToMessageResponse(m *message.Message) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		ChatID:       m.ChatID,
		SenderID:     m.Sender.String(),
		SenderName:   m.SenderName,
		SenderAvatar: m.SenderAvatar,
		Content:      m.Content,
		Type:         string(m.Type),
		Timestamp:    m.Timestamp,
		Edited:       m.Edited,
		EditedAt:     m.EditedAt,
		ReplyTo:      m.ReplyTo,
		Reactions:    m.Reactions,
	}
}

// MessagingHandler handles messaging-related HTTP requests.
type MessagingHandler struct {
	service MessagingService
}

// NewMessagingHandler creates a new MessagingHandler.
func NewMessagingHandler(service MessagingService) *MessagingHandler {
	return &MessagingHandler{service: service}
}

// RegisterRoutes registers messaging routes on the given group.
func (h *MessagingHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/chats/direct", h.CreateDirectChat)
	g.POST("/chats/group", h.CreateGroupChat)
	g.POST("/chats/join", h.JoinGroup)
	g.GET("/chats/:id", h.GetChat)
	g.POST("/chats/:id/leave", h.LeaveGroup)
	g.POST("/chats/:id/messages", h.SendMessage)
	g.PUT("/messages/:id", h.EditMessage)
	g.POST("/messages/:id/reactions", h.AddReaction)
	g.DELETE("/messages/:id/reactions/:emoji", h.RemoveReaction)
	g.PUT("/profile", h.UpdateProfile)
}

// CreateDirectChat handles POST /api/v1/chats/direct.
// Opening a direct chat is idempotent: the existing chat between the two
// users is returned when one is already present.
func (h *MessagingHandler) CreateDirectChat(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req CreateDirectChatRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.ParticipantID == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "participant_id is required")
	}

	chatID, err := h.service.CreateDirectChat(c.Request().Context(), userID, req.ParticipantID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ChatIDResponse{ChatID: chatID})
}

// CreateGroupChat handles POST /api/v1/chats/group.
func (h *MessagingHandler) CreateGroupChat(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req CreateGroupChatRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.Name == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
	}
	if len(req.Name) > maxChatNameLength {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is too long")
	}
	if len(req.Description) > maxDescriptionLength {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "description is too long")
	}

	chatID, err := h.service.CreateGroupChat(
		c.Request().Context(), userID, req.Name, req.Description, req.ParticipantIDs)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ChatIDResponse{ChatID: chatID})
}

// JoinGroup handles POST /api/v1/chats/join.
// Outcomes: 404 when no group matches the code, 200 with the chat ID when
// joined (or already a member), 409 when the group is full.
func (h *MessagingHandler) JoinGroup(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req JoinGroupRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.InviteCode == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "invite_code is required")
	}

	chatID, err := h.service.JoinGroupByInviteCode(c.Request().Context(), req.InviteCode, userID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ChatIDResponse{ChatID: chatID})
}

// GetChat handles GET /api/v1/chats/:id. Participants only.
func (h *MessagingHandler) GetChat(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	found, err := h.loadChat(c, userID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToChatResponse(found))
}

// LeaveGroup handles POST /api/v1/chats/:id/leave.
func (h *MessagingHandler) LeaveGroup(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	if err := h.service.LeaveGroup(c.Request().Context(), c.Param("id"), userID); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// SendMessage handles POST /api/v1/chats/:id/messages. Participants only.
func (h *MessagingHandler) SendMessage(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req SendMessageRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.Content == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "content is required")
	}

	msgType := message.TypeText
	if req.Type != "" {
		msgType = message.Type(req.Type)
		if !message.ValidType(msgType) {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown message type")
		}
	}

	found, err := h.loadChat(c, userID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	msg, err := h.service.SendMessage(c.Request().Context(), found.ID, userID, req.Content, msgType, req.ReplyTo)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToMessageResponse(msg))
}

// EditMessage handles PUT /api/v1/messages/:id. Author only.
func (h *MessagingHandler) EditMessage(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req EditMessageRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.Content == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "content is required")
	}

	msg, err := h.service.EditMessage(c.Request().Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToMessageResponse(msg))
}

// AddReaction handles POST /api/v1/messages/:id/reactions.
func (h *MessagingHandler) AddReaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req ReactionRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.Emoji == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "emoji is required")
	}

	if err := h.service.AddReaction(c.Request().Context(), c.Param("id"), req.Emoji, userID); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// RemoveReaction handles DELETE /api/v1/messages/:id/reactions/:emoji.
func (h *MessagingHandler) RemoveReaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	emoji := c.Param("emoji")
	if emoji == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "emoji is required")
	}

	if err := h.service.RemoveReaction(c.Request().Context(), c.Param("id"), emoji, userID); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// UpdateProfile handles PUT /api/v1/profile.
// Saves the caller's profile and refreshes the denormalized display fields
// in their chats.
func (h *MessagingHandler) UpdateProfile(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return respondUnauthorized(c)
	}

	var req UpdateProfileRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.DisplayName == "" {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "display_name is required")
	}

	profile := user.Profile{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	}
	if err := h.service.UpdateProfile(c.Request().Context(), userID, profile); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// loadChat fetches the chat from the :id route param and checks that the
// caller is a participant.
func (h *MessagingHandler) loadChat(c echo.Context, userID string) (*chat.Chat, error) {
	found, err := h.service.GetChat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errs.ErrNotFound
	}
	if !found.HasParticipant(userID) {
		return nil, errs.ErrForbidden
	}
	return found, nil
}

func respondUnauthorized(c echo.Context) error {
	return httpserver.RespondErrorWithCode(
		c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
}
