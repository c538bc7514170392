// Package crawl drives the per-target pagination state machine and the
// multi-target schedule.
package crawl

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/clock"
	"github.com/JakeFAU/weibo-harvester/internal/feed"
	"github.com/JakeFAU/weibo-harvester/internal/media"
	"github.com/JakeFAU/weibo-harvester/internal/post"
	"github.com/JakeFAU/weibo-harvester/internal/sink"
)

const (
	postsPerPage    = 10
	flushEveryPages = 20

	pageSleepLowSec  = 10
	pageSleepHighSec = 14
	pageIntervalLow  = 1
	pageIntervalHigh = 5
)

// Config controls one Crawler.
type Config struct {
	// Filter drops retweets from the harvest when set.
	Filter bool
	// Since is the run's global date cutoff; the effective cutoff per
	// target is the later of this and the target's ledger cutoff.
	Since time.Time
}

// Crawler harvests one target at a time: resolve identity, page through the
// feed container until exhaustion or the date cutoff, flushing every 20
// pages and once at the end.
type Crawler struct {
	feed    *feed.Client
	writer  *sink.Fanout
	media   *media.Downloader
	clk     clock.Clock
	sleeper clock.Sleeper
	logger  *zap.Logger
	cfg     Config
}

// New builds a Crawler. media may be nil when no download toggle is set.
func New(
	feedClient *feed.Client,
	writer *sink.Fanout,
	downloader *media.Downloader,
	clk clock.Clock,
	sleeper clock.Sleeper,
	cfg Config,
	logger *zap.Logger,
) *Crawler {
	if clk == nil {
		clk = clock.System{}
	}
	if sleeper == nil {
		sleeper = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		feed:    feedClient,
		writer:  writer,
		media:   downloader,
		clk:     clk,
		sleeper: sleeper,
		logger:  logger,
		cfg:     cfg,
	}
}

// Result is the durable outcome of one target's crawl.
type Result struct {
	User      *post.User
	Harvested int
	Flushes   int
	StartedAt time.Time
}

// Run crawls one target end to end. A target that fails identity
// resolution returns feed.ErrNotFound so the caller can drop its ledger
// entry; every other failure mid-crawl still flushes what was harvested.
func (c *Crawler) Run(ctx context.Context, target post.Target) (*Result, error) {
	r := &run{
		target:    target,
		buf:       NewBuffer(),
		startedAt: c.clk.Now(),
		cutoff:    effectiveCutoff(target.Cutoff, c.cfg.Since),
	}

	user, err := c.resolveUser(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	r.user = user
	c.logger.Info("target resolved",
		zap.String("target_id", target.ID),
		zap.String("screen_name", user.ScreenName),
		zap.Int64("statuses_count", user.StatusesCount),
	)

	pageCount := int(math.Ceil(float64(user.StatusesCount) / postsPerPage))
	interval := clock.RandomInterval(pageIntervalLow, pageIntervalHigh)
	lastPause := 0

	for page := 1; page <= pageCount; page++ {
		// An interrupt mid-paging must surface as the context error so the
		// ledger keeps its old cutoff and the next run re-fetches the tail.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		terminate, err := c.fetchPage(ctx, r, page)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			// A failed page ends paging for this target the same as
			// natural termination; what was harvested still flushes.
			c.logger.Warn("page fetch failed, ending pagination",
				zap.String("target_id", target.ID),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		c.logger.Debug("page processed",
			zap.String("target_id", target.ID),
			zap.Int("page", page),
			zap.Int("harvested", r.buf.Len()),
		)
		if terminate {
			break
		}
		if page%flushEveryPages == 0 {
			c.flush(ctx, r)
		}
		if (page-lastPause)%interval == 0 && page < pageCount {
			c.sleeper.Sleep(clock.RandomSeconds(pageSleepLowSec, pageSleepHighSec))
			lastPause = page
			interval = clock.RandomInterval(pageIntervalLow, pageIntervalHigh)
		}
	}

	c.flush(ctx, r)
	c.logger.Info("target crawl finished",
		zap.String("target_id", target.ID),
		zap.String("screen_name", user.ScreenName),
		zap.Int("pages", r.pages),
		zap.Int("harvested", r.buf.Len()),
		zap.Int("flushes", r.flushes),
	)
	return &Result{
		User:      user,
		Harvested: r.buf.Len(),
		Flushes:   r.flushes,
		StartedAt: r.startedAt,
	}, nil
}

// resolveUser retries a not-ok identity resolution once before committing
// to removal, so a transient upstream hiccup cannot delete a ledger entry.
func (c *Crawler) resolveUser(ctx context.Context, targetID string) (*post.User, error) {
	user, err := c.feed.UserInfo(ctx, targetID)
	if err == nil || ctx.Err() != nil {
		return user, err
	}
	c.logger.Warn("identity resolution failed, retrying once",
		zap.String("target_id", targetID),
		zap.Error(err),
	)
	return c.feed.UserInfo(ctx, targetID)
}

// flush hands the buffer's unflushed suffix to every sink, then triggers
// media downloads over the same window. Sink failures are reported
// individually inside the fan-out and never abort the crawl.
func (c *Crawler) flush(ctx context.Context, r *run) {
	batch := r.buf.Unflushed()
	if len(batch) == 0 {
		return
	}
	firstBatch := r.buf.FlushedCount() == 0
	_ = c.writer.Write(ctx, r.user, batch, firstBatch)
	if c.media != nil {
		c.media.SaveBatch(ctx, r.user, batch)
	}
	r.buf.MarkFlushed()
	r.flushes++
}

func effectiveCutoff(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
