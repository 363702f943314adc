package mongo

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"learngen/sink"
)

type MongoConfig struct {
	Uri      string
	Database string
}

type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
}

func OpenMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Uri))
	if err != nil {
		return nil, sink.Unavailable("connect mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, sink.Unavailable("ping mongo", err)
	}
	log.WithField("database", cfg.Database).Info("Opened MongoDB store")
	return &MongoSink{client: client, db: client.Database(cfg.Database)}, nil
}

// Indexes per collection, as used by the reporting queries.
var indexes = map[string][]mongo.IndexModel{
	"user_events": {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "properties.course_id", Value: 1}}},
	},
	"course_reviews": {
		{Keys: bson.D{{Key: "course_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "helpful_count", Value: -1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "comment", Value: "text"}}},
	},
	"support_tickets": {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "issue_type", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_agent", Value: 1}}},
	},
}

// Prepare drops the collections on reset and makes sure their indexes exist.
func (p *MongoSink) Prepare(ctx context.Context, collections []string, reset bool) error {
	for _, name := range collections {
		coll := p.db.Collection(name)
		if reset {
			if err := coll.Drop(ctx); err != nil {
				return sink.Unavailable("drop "+name, err)
			}
			log.WithField("collection", name).Info("Dropped collection")
		}
		models, ok := indexes[name]
		if !ok {
			continue
		}
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return sink.Unavailable("create indexes on "+name, err)
		}
	}
	return nil
}

// InsertMany writes the documents unordered. The store enforces no foreign
// keys, so referential integrity rests on the generators.
func (p *MongoSink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err := p.db.Collection(collection).InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert into %s: %w: %w", collection, sink.ErrConstraintViolation, err)
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return sink.Unavailable("insert into "+collection, err)
}

func (p *MongoSink) Close() error {
	return p.client.Disconnect(context.Background())
}
