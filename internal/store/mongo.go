package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mixgram/mixgram/internal/domain/errs"
)

// MongoStore implements Store over a MongoDB database. Live subscriptions
// are driven by a ChangeNotifier: every write publishes the collection
// name, and subscribers re-run their query for a fresh snapshot.
type MongoStore struct {
	db       *mongo.Database
	notifier ChangeNotifier
	logger   *slog.Logger

	clockMu sync.Mutex
	last    time.Time
}

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithMongoLogger sets the logger for the store.
func WithMongoLogger(logger *slog.Logger) MongoOption {
	return func(s *MongoStore) {
		s.logger = logger
	}
}

// NewMongoStore creates a store over an existing database handle. The
// store owns neither the Mongo client nor the notifier.
func NewMongoStore(db *mongo.Database, notifier ChangeNotifier, opts ...MongoOption) *MongoStore {
	s := &MongoStore{
		db:       db,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the adapter for a named Mongo collection.
func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{
		store: s,
		name:  name,
		coll:  s.db.Collection(name),
	}
}

// Close is a no-op; the Mongo client and notifier are closed by their owner.
func (s *MongoStore) Close(_ context.Context) error {
	return nil
}

// now returns a strictly increasing server timestamp for this store
// instance. Across instances, ordering is as good as the host clocks.
func (s *MongoStore) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type mongoCollection struct {
	store *MongoStore
	name  string
	coll  *mongo.Collection
}

func (c *mongoCollection) Create(ctx context.Context, fields Fields) (string, error) {
	id := uuid.NewString()

	doc := c.resolve(fields)
	doc["_id"] = id

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}

	c.publish(ctx)
	return id, nil
}

func (c *mongoCollection) Get(ctx context.Context, id string) (*Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from %s: %w", c.name, err)
	}

	doc := documentFromBSON(raw)
	return &doc, nil
}

func (c *mongoCollection) Update(ctx context.Context, id string, fields Fields) error {
	update := bson.M{"$set": c.resolve(fields)}
	result, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", c.name, err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrNotFound
	}

	c.publish(ctx)
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", c.name, err)
	}
	if result.DeletedCount > 0 {
		c.publish(ctx)
	}
	return nil
}

func (c *mongoCollection) Find(ctx context.Context, filter Filter, opts ...FindOption) ([]Document, error) {
	var findOpts FindOptions
	for _, opt := range opts {
		opt(&findOpts)
	}

	mongoOpts := options.Find()
	if findOpts.OrderBy != "" {
		order := 1
		if findOpts.Descending {
			order = -1
		}
		mongoOpts.SetSort(bson.D{{Key: findOpts.OrderBy, Value: order}})
	}
	if findOpts.Limit > 0 {
		mongoOpts.SetLimit(int64(findOpts.Limit))
	}

	cursor, err := c.coll.Find(ctx, bson.M(filter), mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if decodeErr := cursor.Decode(&raw); decodeErr != nil {
			continue
		}
		docs = append(docs, documentFromBSON(raw))
	}
	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *mongoCollection) Subscribe(ctx context.Context, filter Filter, fn SnapshotFunc) (Unsubscribe, error) {
	deliver := func() {
		docs, err := c.Find(ctx, filter)
		if err != nil {
			c.store.logger.WarnContext(ctx, "snapshot query failed",
				slog.String("collection", c.name),
				slog.String("error", err.Error()),
			)
			return
		}
		fn(docs)
	}

	unsubscribe := c.store.notifier.Subscribe(c.name, deliver)

	// Initial full snapshot before any change arrives.
	docs, err := c.Find(ctx, filter)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	fn(docs)

	return unsubscribe, nil
}

// resolve converts Fields to a BSON document, replacing ServerTimestamp
// sentinels. All sentinels within one write resolve to the same instant.
func (c *mongoCollection) resolve(fields Fields) bson.M {
	doc := make(bson.M, len(fields))
	var assigned time.Time
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			if assigned.IsZero() {
				assigned = c.store.now()
			}
			doc[k] = assigned
			continue
		}
		doc[k] = v
	}
	return doc
}

func (c *mongoCollection) publish(ctx context.Context) {
	// Change signal loss degrades liveness only; the write is durable.
	if err := c.store.notifier.Publish(ctx, c.name); err != nil {
		c.store.logger.WarnContext(ctx, "failed to publish change signal",
			slog.String("collection", c.name),
			slog.String("error", err.Error()),
		)
	}
}

// documentFromBSON normalizes decoded BSON into the adapter's Fields
// representation (datetimes to time.Time, arrays to []any or []string).
func documentFromBSON(raw bson.M) Document {
	doc := Document{Fields: make(Fields, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			doc.ID, _ = v.(string)
			continue
		}
		doc.Fields[k] = normalizeBSON(v)
	}
	return doc
}

func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.DateTime:
		return val.Time().UTC()
	case bson.A:
		strs := make([]string, 0, len(val))
		allStrings := true
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				allStrings = false
				break
			}
			strs = append(strs, s)
		}
		if allStrings {
			return strs
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeBSON(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = normalizeBSON(elem.Value)
		}
		return out
	case int32:
		return int(val)
	case int64:
		return int(val)
	default:
		return v
	}
}
