package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/feed"
	"github.com/JakeFAU/weibo-harvester/internal/metrics"
	"github.com/JakeFAU/weibo-harvester/internal/normalize"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// run is the in-memory state of one target's crawl; its durable residue is
// the ledger entry plus whatever the sinks persisted.
type run struct {
	target    post.Target
	user      *post.User
	buf       *Buffer
	cutoff    time.Time
	startedAt time.Time
	pages     int
	flushes   int
}

// fetchPage retrieves one feed page and feeds accepted posts into the run
// buffer. It reports whether pagination should terminate: true once a
// non-pinned post older than the cutoff shows up.
func (c *Crawler) fetchPage(ctx context.Context, r *run, page int) (bool, error) {
	cards, err := c.feed.Page(ctx, r.target.ID, page)
	if err != nil {
		return false, err
	}
	metrics.PagesFetched.Inc()
	r.pages++

	for _, card := range cards {
		if !card.IsPost() {
			continue
		}
		p, err := c.buildPost(ctx, card.Mblog)
		if err != nil {
			c.logger.Warn("skipping malformed feed item",
				zap.String("target_id", r.target.ID),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		if r.buf.Seen(p.ID) {
			continue
		}
		if p.CreatedAt.Before(r.cutoff) {
			// The pinned post sits on top of the feed regardless of
			// recency; it must not end pagination.
			if card.Mblog.IsPinned() {
				continue
			}
			return true, nil
		}
		if c.cfg.Filter && p.IsRetweet() {
			continue
		}
		if r.buf.Add(p) {
			metrics.PostsHarvested.Inc()
		}
	}
	return false, nil
}

// buildPost normalizes one feed item, resolving long-form text on either
// side when flagged. The created-at of each side always comes from the feed
// item, not from the detail payload.
func (c *Crawler) buildPost(ctx context.Context, m *feed.Mblog) (*post.Post, error) {
	now := c.clk.Now()

	p, err := normalize.Post(c.resolveLongForm(ctx, m), now)
	if err != nil {
		return nil, err
	}
	createdAt, err := normalize.Date(m.CreatedAt, now)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt

	if rs := m.RetweetedStatus; rs != nil {
		rp, err := normalize.Post(c.resolveLongForm(ctx, rs), now)
		if err != nil {
			return nil, err
		}
		rtCreatedAt, err := normalize.Date(rs.CreatedAt, now)
		if err != nil {
			return nil, err
		}
		rp.CreatedAt = rtCreatedAt
		p.Retweet = rp
	}
	return p, nil
}

// resolveLongForm swaps a truncated item for its detail payload when
// available. Failure falls back to the short form and is never fatal.
func (c *Crawler) resolveLongForm(ctx context.Context, m *feed.Mblog) *feed.Mblog {
	if !m.IsLongText {
		return m
	}
	full, err := c.feed.LongPost(ctx, m.ID)
	if err != nil || full == nil {
		metrics.LongTextFallbacks.Inc()
		c.logger.Debug("long-form unavailable, using short form",
			zap.String("post_id", m.ID),
			zap.Error(err),
		)
		return m
	}
	return full
}
