package crawl

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/clock"
	"github.com/JakeFAU/weibo-harvester/internal/feed"
	"github.com/JakeFAU/weibo-harvester/internal/ledger"
	"github.com/JakeFAU/weibo-harvester/internal/metrics"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

const (
	targetPauseEvery   = 10
	targetPauseLowSec  = 6
	targetPauseHighSec = 10
)

// Scheduler iterates the configured targets strictly sequentially, applies
// inter-target pacing, and keeps the resume ledger current. A single
// target's unrecoverable error is caught here and the run proceeds.
type Scheduler struct {
	crawler *Crawler
	ledger  *ledger.File // nil when targets come straight from config
	sleeper clock.Sleeper
	logger  *zap.Logger
}

// NewScheduler builds a Scheduler. ledgerFile may be nil.
func NewScheduler(crawler *Crawler, ledgerFile *ledger.File, sleeper clock.Sleeper, logger *zap.Logger) *Scheduler {
	if sleeper == nil {
		sleeper = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		crawler: crawler,
		ledger:  ledgerFile,
		sleeper: sleeper,
		logger:  logger,
	}
}

// Run crawls every target in order. It returns early only when the context
// is done; per-target failures are logged and skipped.
func (s *Scheduler) Run(ctx context.Context, targets []post.Target) error {
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i%targetPauseEvery == 0 {
			s.sleeper.Sleep(clock.RandomSeconds(targetPauseLowSec, targetPauseHighSec))
		}
		s.logger.Info("crawling target",
			zap.String("target_id", target.ID),
			zap.Int("position", i+1),
			zap.Int("total", len(targets)),
		)

		res, err := s.crawler.Run(ctx, target)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, feed.ErrNotFound):
			metrics.TargetsSkipped.Inc()
			s.logger.Warn("target does not exist, removing from ledger",
				zap.String("target_id", target.ID),
			)
			if s.ledger != nil {
				if lerr := s.ledger.Remove(target.ID); lerr != nil {
					s.logger.Error("ledger remove failed", zap.String("target_id", target.ID), zap.Error(lerr))
				}
			}
		case err != nil:
			s.logger.Error("target crawl failed, continuing with next target",
				zap.String("target_id", target.ID),
				zap.Error(err),
			)
		default:
			if s.ledger != nil {
				if lerr := s.ledger.MarkDone(target.ID, res.User.ScreenName, res.StartedAt); lerr != nil {
					s.logger.Error("ledger update failed", zap.String("target_id", target.ID), zap.Error(lerr))
				}
			}
		}
	}
	return nil
}
