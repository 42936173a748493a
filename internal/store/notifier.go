package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "changes:"

// ChangeNotifier fans collection change signals out to subscribers. The
// signal carries no payload; subscribers re-run their query and deliver a
// fresh snapshot, so delivery is at-least-once and safely coalescible.
type ChangeNotifier interface {
	// Publish signals that a collection changed.
	Publish(ctx context.Context, collection string) error

	// Subscribe registers fn to run after every change to the collection.
	Subscribe(collection string, fn func()) Unsubscribe

	// Close stops delivery and releases resources.
	Close() error
}

// RedisNotifier implements ChangeNotifier over Redis Pub/Sub, one channel
// per collection under a common prefix. Multiple API instances sharing a
// Redis see each other's writes this way.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]map[int]func()
	nextID   int

	pubsub *redis.PubSub
	wg     sync.WaitGroup

	runningMu sync.Mutex
	running   bool
}

// NotifierOption configures a RedisNotifier.
type NotifierOption func(*RedisNotifier)

// WithNotifierLogger sets the logger for the notifier.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *RedisNotifier) {
		n.logger = logger
	}
}

// WithChannelPrefix sets a prefix for Redis channel names.
func WithChannelPrefix(prefix string) NotifierOption {
	return func(n *RedisNotifier) {
		n.prefix = prefix
	}
}

// NewRedisNotifier creates a notifier over an existing Redis client. The
// notifier does not own the client.
func NewRedisNotifier(client *redis.Client, opts ...NotifierOption) *RedisNotifier {
	n := &RedisNotifier{
		client:   client,
		prefix:   defaultChannelPrefix,
		logger:   slog.Default(),
		handlers: make(map[string]map[int]func()),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start begins consuming change signals. Must be called once before
// Subscribe callbacks can fire.
func (n *RedisNotifier) Start(ctx context.Context) error {
	n.runningMu.Lock()
	defer n.runningMu.Unlock()
	if n.running {
		return nil
	}

	n.pubsub = n.client.PSubscribe(ctx, n.prefix+"*")
	if _, err := n.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to change channels: %w", err)
	}

	n.running = true
	n.wg.Add(1)
	go n.consume(ctx)
	return nil
}

func (n *RedisNotifier) consume(ctx context.Context) {
	defer n.wg.Done()

	ch := n.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			collection := strings.TrimPrefix(msg.Channel, n.prefix)
			n.dispatch(collection)
		}
	}
}

func (n *RedisNotifier) dispatch(collection string) {
	n.mu.RLock()
	fns := make([]func(), 0, len(n.handlers[collection]))
	for _, fn := range n.handlers[collection] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Publish signals a change on the collection's channel.
func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	if err := n.client.Publish(ctx, n.prefix+collection, "1").Err(); err != nil {
		return fmt.Errorf("failed to publish change signal: %w", err)
	}
	return nil
}

// Subscribe registers fn for changes to the collection.
func (n *RedisNotifier) Subscribe(collection string, fn func()) Unsubscribe {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	if n.handlers[collection] == nil {
		n.handlers[collection] = make(map[int]func())
	}
	n.handlers[collection][id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.handlers[collection], id)
		n.mu.Unlock()
	}
}

// Close stops the consume loop. The Redis client stays open for its owner.
func (n *RedisNotifier) Close() error {
	n.runningMu.Lock()
	defer n.runningMu.Unlock()
	if !n.running {
		return nil
	}
	n.running = false

	err := n.pubsub.Close()
	n.wg.Wait()
	return err
}

// MemoryNotifier implements ChangeNotifier in-process, for mock mode and
// tests that exercise the Mongo store without Redis.
type MemoryNotifier struct {
	mu       sync.RWMutex
	handlers map[string]map[int]func()
	nextID   int
}

// NewMemoryNotifier creates an in-process change notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{handlers: make(map[string]map[int]func())}
}

// Publish dispatches synchronously to registered handlers.
func (n *MemoryNotifier) Publish(_ context.Context, collection string) error {
	n.mu.RLock()
	fns := make([]func(), 0, len(n.handlers[collection]))
	for _, fn := range n.handlers[collection] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Subscribe registers fn for changes to the collection.
func (n *MemoryNotifier) Subscribe(collection string, fn func()) Unsubscribe {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	if n.handlers[collection] == nil {
		n.handlers[collection] = make(map[int]func())
	}
	n.handlers[collection][id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.handlers[collection], id)
		n.mu.Unlock()
	}
}

// Close releases all handlers.
func (n *MemoryNotifier) Close() error {
	n.mu.Lock()
	n.handlers = make(map[string]map[int]func())
	n.mu.Unlock()
	return nil
}
