package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mixgram/mixgram/internal/middleware"
)

// Handler configuration constants.
const (
	defaultHandlerReadBufferSize  = 1024
	defaultHandlerWriteBufferSize = 1024
)

// Handler handles WebSocket upgrade requests.
type Handler struct {
	service           SnapshotService
	upgrader          websocket.Upgrader
	tokenValidator    middleware.TokenValidator
	trustUserIDHeader bool
	logger            *slog.Logger
	clientConfig      ClientConfig
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithTokenValidator sets the token validator for the handler.
func WithTokenValidator(validator middleware.TokenValidator) HandlerOption {
	return func(h *Handler) {
		h.tokenValidator = validator
	}
}

// WithTrustUserIDHeader accepts the X-User-ID header as the caller identity.
// Only enabled in mock mode.
func WithTrustUserIDHeader(trust bool) HandlerOption {
	return func(h *Handler) {
		h.trustUserIDHeader = trust
	}
}

// WithClientConfiguration sets the configuration applied to new clients.
func WithClientConfiguration(config ClientConfig) HandlerOption {
	return func(h *Handler) {
		h.clientConfig = config
	}
}

// WithBufferSizes sets the upgrader's read and write buffer sizes.
func WithBufferSizes(read, write int) HandlerOption {
	return func(h *Handler) {
		h.upgrader.ReadBufferSize = read
		h.upgrader.WriteBufferSize = write
	}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(service SnapshotService, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  defaultHandlerReadBufferSize,
			WriteBufferSize: defaultHandlerWriteBufferSize,
			CheckOrigin: func(_ *http.Request) bool {
				// Browsers cannot set Authorization headers on WebSocket
				// upgrades; the token itself gates the connection.
				return true
			},
		},
		logger:       slog.Default(),
		clientConfig: DefaultClientConfig(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleWebSocket handles WebSocket upgrade requests. The caller identity
// comes from the auth middleware, a token query parameter, or (in mock
// mode) the X-User-ID header.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	userID := h.resolveUserID(c)
	if userID == "" {
		h.logger.Warn("websocket connection rejected: authentication required",
			slog.String("remote_ip", c.RealIP()),
		)
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"success": false,
			"error": map[string]string{
				"code":    "UNAUTHORIZED",
				"message": "Authentication required",
			},
		})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil // Upgrade already sent an error response
	}

	client := NewClient(
		conn,
		h.service,
		userID,
		WithClientConfig(h.clientConfig),
		WithClientLogger(h.logger),
	)

	h.logger.Info("websocket connection established",
		slog.String("user_id", userID),
		slog.String("remote_ip", c.RealIP()),
	)

	if startErr := client.Start(c.Request().Context()); startErr != nil {
		h.logger.Error("websocket session failed",
			slog.String("user_id", userID),
			slog.String("error", startErr.Error()),
		)
		client.Close()
	}

	return nil
}

// resolveUserID extracts the caller identity from the echo context, a
// token, or the trusted header.
func (h *Handler) resolveUserID(c echo.Context) string {
	if userID := middleware.GetUserID(c); userID != "" {
		return userID
	}

	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		const bearerPrefix = "Bearer "
		if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
			token = after
		}
	}

	if token != "" && h.tokenValidator != nil {
		claims, err := h.tokenValidator.ValidateToken(token)
		if err != nil {
			h.logger.Debug("token validation failed",
				slog.String("error", err.Error()),
			)
			return ""
		}
		return claims.UserID
	}

	if h.trustUserIDHeader {
		return c.Request().Header.Get(middleware.UserIDHeader)
	}

	return ""
}

// RegisterRoutes registers the WebSocket handler with the Echo router.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}
