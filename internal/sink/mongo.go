package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// MongoConfig controls the document-store sink.
type MongoConfig struct {
	URI      string
	Database string
}

// Mongo upserts targets and posts by id with last-writer-wins semantics.
// Retweeted sub-posts stay embedded in their parent document.
type Mongo struct {
	client *mongo.Client
	db     string
}

// NewMongo connects and pings the document store.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo.uri is required")
	}
	db := cfg.Database
	if db == "" {
		db = "weibo"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: db}, nil
}

// Close disconnects the client.
func (s *Mongo) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// Name implements Sink.
func (s *Mongo) Name() string { return "mongo" }

// Write implements Sink.
func (s *Mongo) Write(ctx context.Context, user *post.User, batch []*post.Post, firstBatch bool) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("mongo sink is not configured")
	}
	opts := options.Replace().SetUpsert(true)
	if firstBatch {
		targets := s.client.Database(s.db).Collection("target")
		if _, err := targets.ReplaceOne(ctx, bson.M{"id": user.ID}, user, opts); err != nil {
			return fmt.Errorf("upsert target %s: %w", user.ID, err)
		}
	}
	posts := s.client.Database(s.db).Collection("post")
	for _, p := range batch {
		if _, err := posts.ReplaceOne(ctx, bson.M{"id": p.ID}, p, opts); err != nil {
			return fmt.Errorf("upsert post %d: %w", p.ID, err)
		}
	}
	return nil
}
