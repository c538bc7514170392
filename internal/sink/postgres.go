package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// PostgresConfig controls the connection pool behind the relational sink.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres upserts targets and posts by primary key with last-writer-wins
// semantics. Retweeted sub-posts become independent rows inserted before
// the parent rows that reference them via a nullable retweet_id.
type Postgres struct {
	pool execCloser
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS target (
	id TEXT PRIMARY KEY,
	screen_name TEXT,
	gender TEXT,
	statuses_count BIGINT,
	followers_count BIGINT,
	follow_count BIGINT,
	description TEXT,
	profile_url TEXT,
	avatar_hd TEXT,
	verified BOOLEAN,
	verified_reason TEXT
);
CREATE TABLE IF NOT EXISTS post (
	id BIGINT PRIMARY KEY,
	bid TEXT,
	user_id TEXT,
	screen_name TEXT,
	text TEXT,
	topics TEXT,
	at_users TEXT,
	pics TEXT,
	video_url TEXT,
	location TEXT,
	created_at DATE,
	source TEXT,
	attitudes_count BIGINT,
	comments_count BIGINT,
	reposts_count BIGINT,
	retweet_id BIGINT
);`

const pgUpsertTarget = `
INSERT INTO target (
	id, screen_name, gender, statuses_count, followers_count, follow_count,
	description, profile_url, avatar_hd, verified, verified_reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	screen_name = EXCLUDED.screen_name,
	gender = EXCLUDED.gender,
	statuses_count = EXCLUDED.statuses_count,
	followers_count = EXCLUDED.followers_count,
	follow_count = EXCLUDED.follow_count,
	description = EXCLUDED.description,
	profile_url = EXCLUDED.profile_url,
	avatar_hd = EXCLUDED.avatar_hd,
	verified = EXCLUDED.verified,
	verified_reason = EXCLUDED.verified_reason`

const pgUpsertPost = `
INSERT INTO post (
	id, bid, user_id, screen_name, text, topics, at_users, pics, video_url,
	location, created_at, source, attitudes_count, comments_count,
	reposts_count, retweet_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
	bid = EXCLUDED.bid,
	user_id = EXCLUDED.user_id,
	screen_name = EXCLUDED.screen_name,
	text = EXCLUDED.text,
	topics = EXCLUDED.topics,
	at_users = EXCLUDED.at_users,
	pics = EXCLUDED.pics,
	video_url = EXCLUDED.video_url,
	location = EXCLUDED.location,
	created_at = EXCLUDED.created_at,
	source = EXCLUDED.source,
	attitudes_count = EXCLUDED.attitudes_count,
	comments_count = EXCLUDED.comments_count,
	reposts_count = EXCLUDED.reposts_count,
	retweet_id = EXCLUDED.retweet_id`

// NewPostgres connects a pool and ensures the schema exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool constructs a sink from an existing pool (primarily
// for testing).
func NewPostgresWithPool(pool execCloser) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Name implements Sink.
func (s *Postgres) Name() string { return "postgres" }

func (s *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Write implements Sink.
func (s *Postgres) Write(ctx context.Context, user *post.User, batch []*post.Post, firstBatch bool) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if firstBatch {
		if err := s.upsertTarget(ctx, user); err != nil {
			return err
		}
	}
	for _, p := range batch {
		if rt := p.Retweet; rt != nil {
			if err := s.upsertPost(ctx, rt, nil); err != nil {
				return err
			}
			if err := s.upsertPost(ctx, p, &rt.ID); err != nil {
				return err
			}
			continue
		}
		if err := s.upsertPost(ctx, p, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) upsertTarget(ctx context.Context, u *post.User) error {
	_, err := s.pool.Exec(ctx, pgUpsertTarget,
		u.ID, u.ScreenName, u.Gender, u.StatusesCount, u.FollowersCount,
		u.FollowCount, u.Description, u.ProfileURL, u.AvatarHD, u.Verified,
		u.VerifiedReason,
	)
	if err != nil {
		return fmt.Errorf("upsert target %s: %w", u.ID, err)
	}
	return nil
}

func (s *Postgres) upsertPost(ctx context.Context, p *post.Post, retweetID *int64) error {
	_, err := s.pool.Exec(ctx, pgUpsertPost,
		p.ID, p.BID, p.AuthorID, p.AuthorName, p.Text,
		strings.Join(p.Topics, ","), strings.Join(p.Mentions, ","),
		strings.Join(p.ImageURLs, ","), strings.Join(p.VideoURLs, ";"),
		p.Location, p.CreatedAt, p.Source, p.Likes, p.Comments, p.Reposts,
		retweetID,
	)
	if err != nil {
		return fmt.Errorf("upsert post %d: %w", p.ID, err)
	}
	return nil
}
