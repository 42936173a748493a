// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mixgram/mixgram/internal/config"
	httphandler "github.com/mixgram/mixgram/internal/handler/http"
	wshandler "github.com/mixgram/mixgram/internal/handler/websocket"
	"github.com/mixgram/mixgram/internal/messaging"
	"github.com/mixgram/mixgram/internal/middleware"
	"github.com/mixgram/mixgram/internal/service"
	"github.com/mixgram/mixgram/internal/store"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies and manages their lifecycle.
type Container struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB  *mongo.Client
	Redis    *redis.Client
	Notifier store.ChangeNotifier
	Store    store.Store

	// Repositories
	ChatRepo    *messaging.ChatRepository
	MessageRepo *messaging.MessageRepository
	ProfileRepo *messaging.ProfileRepository

	// Services
	MessagingService *service.MessagingService

	// Handlers
	MessagingHandler *httphandler.MessagingHandler
	WSHandler        *wshandler.Handler

	// Auth
	TokenValidator middleware.TokenValidator
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer creates a new dependency injection container.
// The wiring mode (real/mock) is determined by config.App.Mode.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logWiringMode()

	if err := c.setupInfrastructure(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	c.setupRepositories()
	c.setupServices()
	c.setupHandlers()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

// logWiringMode logs the current wiring mode configuration.
func (c *Container) logWiringMode() {
	if c.Config.App.IsMockMode() {
		c.Logger.Warn("container starting in MOCK mode",
			slog.String("mode", string(config.AppModeMock)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
		)
	} else {
		c.Logger.Info("container starting in REAL mode",
			slog.String("mode", string(config.AppModeReal)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
		)
	}
}

// setupInfrastructure initializes the document store and the change
// notifier according to the wiring mode.
func (c *Container) setupInfrastructure() error {
	if c.Config.App.IsMockMode() {
		c.Notifier = store.NewMemoryNotifier()
		c.Store = store.NewMemoryStore()
		c.Logger.Debug("in-memory store initialized")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setupMongoDB(ctx); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := c.setupRedis(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	notifier := store.NewRedisNotifier(
		c.Redis,
		store.WithNotifierLogger(c.Logger),
		store.WithChannelPrefix(c.Config.Redis.ChannelPrefix),
	)
	if err := notifier.Start(context.Background()); err != nil {
		return fmt.Errorf("change notifier: %w", err)
	}
	c.Notifier = notifier

	db := c.MongoDB.Database(c.Config.MongoDB.Database)
	c.Store = store.NewMongoStore(db, c.Notifier, store.WithMongoLogger(c.Logger))

	return nil
}

// setupMongoDB initializes the MongoDB client.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.MongoDB = client

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupRepositories initializes the repositories over the document store.
// The message repository doubles as the system announcer for chat
// membership events.
func (c *Container) setupRepositories() {
	c.MessageRepo = messaging.NewMessageRepository(
		c.Store,
		messaging.WithMessageLogger(c.Logger),
		messaging.WithSnapshotWindow(c.Config.Messaging.SnapshotWindow),
	)

	c.ChatRepo = messaging.NewChatRepository(
		c.Store,
		c.MessageRepo,
		messaging.WithChatLogger(c.Logger),
	)

	c.ProfileRepo = messaging.NewProfileRepository(c.Store)
}

// setupServices initializes the messaging facade.
func (c *Container) setupServices() {
	c.MessagingService = service.NewMessagingService(
		c.ChatRepo,
		c.MessageRepo,
		c.ProfileRepo,
		service.WithLogger(c.Logger),
	)
}

// setupHandlers initializes the transport handlers.
func (c *Container) setupHandlers() {
	c.TokenValidator = middleware.NewJWTValidator(c.Config.Auth.JWTSecret)

	c.MessagingHandler = httphandler.NewMessagingHandler(c.MessagingService)

	c.WSHandler = wshandler.NewHandler(
		c.MessagingService,
		wshandler.WithHandlerLogger(c.Logger),
		wshandler.WithTokenValidator(c.TokenValidator),
		wshandler.WithTrustUserIDHeader(c.Config.App.IsMockMode()),
		wshandler.WithBufferSizes(c.Config.WebSocket.ReadBufferSize, c.Config.WebSocket.WriteBufferSize),
		wshandler.WithClientConfiguration(wshandler.ClientConfig{
			PingInterval:   c.Config.WebSocket.PingInterval,
			PongWait:       c.Config.WebSocket.PongTimeout,
			WriteWait:      wshandler.DefaultClientConfig().WriteWait,
			MaxMessageSize: wshandler.DefaultClientConfig().MaxMessageSize,
		}),
	)
}

// validateWiring ensures all required dependencies are properly initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.Store == nil {
		errs = append(errs, errors.New("document store not initialized"))
	}
	if c.Notifier == nil {
		errs = append(errs, errors.New("change notifier not initialized"))
	}
	if c.MessagingService == nil {
		errs = append(errs, errors.New("messaging service not initialized"))
	}
	if c.MessagingHandler == nil {
		errs = append(errs, errors.New("messaging handler not initialized"))
	}
	if c.WSHandler == nil {
		errs = append(errs, errors.New("websocket handler not initialized"))
	}
	if c.Config.App.IsRealMode() {
		if c.MongoDB == nil {
			errs = append(errs, errors.New("mongodb client not initialized"))
		}
		if c.Redis == nil {
			errs = append(errs, errors.New("redis client not initialized"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// IsReady reports whether the backing infrastructure is reachable.
func (c *Container) IsReady(ctx context.Context) bool {
	if c.Config.App.IsMockMode() {
		return true
	}
	if c.MongoDB == nil || c.Redis == nil {
		return false
	}
	if err := c.MongoDB.Ping(ctx, nil); err != nil {
		return false
	}
	return c.Redis.Ping(ctx).Err() == nil
}

// Close releases all infrastructure resources.
func (c *Container) Close() error {
	var errs []error

	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()
		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb: %w", err))
		}
	}

	return errors.Join(errs...)
}
