package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/clock"
	"github.com/JakeFAU/weibo-harvester/internal/config"
	"github.com/JakeFAU/weibo-harvester/internal/crawl"
	"github.com/JakeFAU/weibo-harvester/internal/feed"
	"github.com/JakeFAU/weibo-harvester/internal/ledger"
	"github.com/JakeFAU/weibo-harvester/internal/logging"
	"github.com/JakeFAU/weibo-harvester/internal/media"
	"github.com/JakeFAU/weibo-harvester/internal/metrics"
	"github.com/JakeFAU/weibo-harvester/internal/post"
	"github.com/JakeFAU/weibo-harvester/internal/sink"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Harvests every configured target once",
		Long: `Resolves each configured target, pages through its feed until the
resume cutoff, and persists new posts into every configured sink.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	// Configuration failures are fatal and happen before any network I/O.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	metrics.StartServer(cfg.Metrics.Addr)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sys := clock.System{}

	feedClient := feed.New(feed.Config{
		BaseURL:           cfg.Feed.BaseURL,
		UserAgent:         cfg.Feed.UserAgent,
		Cookie:            cfg.Cookie,
		Timeout:           cfg.FeedTimeout(),
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		Burst:             cfg.Feed.Burst,
	}, sys, logger)

	sinks, cleanup, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var downloader *media.Downloader
	opts := media.Options{
		OriginalImages: cfg.Download.OriginalImages,
		OriginalVideos: cfg.Download.OriginalVideos,
		RetweetImages:  cfg.Download.RetweetImages && !cfg.Filter,
		RetweetVideos:  cfg.Download.RetweetVideos && !cfg.Filter,
	}
	if opts.Enabled() {
		downloader = media.New(feedClient, cfg.OutputDir, opts, logger)
	}

	since, err := cfg.Since(sys.Now())
	if err != nil {
		return err
	}

	targets, ledgerFile, err := loadTargets(cfg, since)
	if err != nil {
		return err
	}

	crawler := crawl.New(
		feedClient,
		sink.NewFanout(sinks, logger),
		downloader,
		sys,
		sys,
		crawl.Config{Filter: cfg.Filter, Since: since},
		logger,
	)
	scheduler := crawl.NewScheduler(crawler, ledgerFile, sys, logger)

	logger.Info("starting run",
		zap.Int("targets", len(targets)),
		zap.Time("since", since),
		zap.Strings("write_modes", cfg.WriteModes),
	)
	if err := scheduler.Run(ctx, targets); err != nil {
		logger.Warn("run interrupted", zap.Error(err))
		return nil
	}
	logger.Info("run finished")
	return nil
}

// loadTargets builds the target list from either the static config list or
// the resume ledger file. Ledger cutoffs default to the global since-date.
func loadTargets(cfg config.Config, since time.Time) ([]post.Target, *ledger.File, error) {
	if cfg.TargetFile == "" {
		targets := make([]post.Target, 0, len(cfg.Targets))
		for _, id := range cfg.Targets {
			targets = append(targets, post.Target{ID: id, Cutoff: since})
		}
		return targets, nil, nil
	}

	ledgerFile := ledger.NewFile(cfg.TargetFile)
	entries, err := ledgerFile.Load()
	if err != nil {
		return nil, nil, err
	}
	targets := make([]post.Target, 0, len(entries))
	for _, e := range entries {
		cutoff := e.Cutoff
		if cutoff.IsZero() {
			cutoff = since
		}
		targets = append(targets, post.Target{
			ID:         e.ID,
			ScreenName: e.ScreenName,
			Cutoff:     cutoff,
		})
	}
	return targets, ledgerFile, nil
}

func buildSinks(ctx context.Context, cfg config.Config) ([]sink.Sink, func(), error) {
	var (
		sinks    []sink.Sink
		cleanups []func()
	)
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	for _, mode := range cfg.WriteModes {
		switch mode {
		case "csv":
			sinks = append(sinks, sink.NewCSV(cfg.OutputDir, !cfg.Filter))
		case "json":
			sinks = append(sinks, sink.NewJSONFile(cfg.OutputDir))
		case "postgres":
			pg, err := sink.NewPostgres(ctx, sink.PostgresConfig{
				DSN:      cfg.Postgres.DSN,
				MaxConns: cfg.Postgres.MaxConns,
				MinConns: cfg.Postgres.MinConns,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("init postgres sink: %w", err)
			}
			cleanups = append(cleanups, pg.Close)
			sinks = append(sinks, pg)
		case "mongo":
			mg, err := sink.NewMongo(ctx, sink.MongoConfig{
				URI:      cfg.Mongo.URI,
				Database: cfg.Mongo.Database,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("init mongo sink: %w", err)
			}
			cleanups = append(cleanups, func() { _ = mg.Close(context.Background()) })
			sinks = append(sinks, mg)
		}
	}
	return sinks, cleanup, nil
}
