// Package media downloads image and video attachments for flushed batches.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/metrics"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

const errorLogName = "not_downloaded.txt"

// Fetcher retrieves one media file body.
type Fetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Options selects which media of which post side gets downloaded.
type Options struct {
	OriginalImages bool
	OriginalVideos bool
	RetweetImages  bool
	RetweetVideos  bool
}

// Enabled reports whether any media type is selected.
func (o Options) Enabled() bool {
	return o.OriginalImages || o.OriginalVideos || o.RetweetImages || o.RetweetVideos
}

// Downloader saves media files under <dir>/<screen_name>/{img,video}/…, one
// subdirectory per post side. A failed file is appended to a per-target
// error log of id:url pairs and never aborts the batch.
type Downloader struct {
	fetcher Fetcher
	dir     string
	opts    Options
	logger  *zap.Logger
}

// New builds a Downloader rooted at dir.
func New(fetcher Fetcher, dir string, opts Options, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, dir: dir, opts: opts, logger: logger}
}

// SaveBatch downloads the selected media for every post in the batch.
func (d *Downloader) SaveBatch(ctx context.Context, user *post.User, batch []*post.Post) {
	for _, p := range batch {
		if d.opts.OriginalImages {
			d.savePost(ctx, user, p, "img", "original", p.ImageURLs)
		}
		if d.opts.OriginalVideos {
			d.savePost(ctx, user, p, "video", "original", p.VideoURLs)
		}
		if rt := p.Retweet; rt != nil {
			if d.opts.RetweetImages {
				d.savePost(ctx, user, rt, "img", "retweet", rt.ImageURLs)
			}
			if d.opts.RetweetVideos {
				d.savePost(ctx, user, rt, "video", "retweet", rt.VideoURLs)
			}
		}
	}
}

func (d *Downloader) savePost(ctx context.Context, user *post.User, p *post.Post, kind, side string, urls []string) {
	if len(urls) == 0 {
		return
	}
	dir := filepath.Join(d.dir, user.ScreenName, kind, side)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		d.logger.Error("create media dir failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	prefix := p.CreatedAt.Format("20060102") + "_" + strconv.FormatInt(p.ID, 10)
	for i, url := range urls {
		name := prefix
		if len(urls) > 1 {
			name = fmt.Sprintf("%s_%d", prefix, i+1)
		}
		path := filepath.Join(dir, name+extension(kind, url))
		if err := d.saveFile(ctx, url, path); err != nil {
			metrics.DownloadErrors.Inc()
			d.logger.Warn("media download failed",
				zap.Int64("post_id", p.ID),
				zap.String("url", url),
				zap.Error(err),
			)
			d.appendErrorLog(filepath.Join(d.dir, user.ScreenName, kind), p.ID, url)
		}
	}
}

func (d *Downloader) saveFile(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	body, err := d.fetcher.Download(ctx, url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (d *Downloader) appendErrorLog(dir string, postID int64, url string) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return
	}
	path := filepath.Join(dir, errorLogName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		d.logger.Error("open download error log failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%d:%s\n", postID, url)
}

func extension(kind, url string) string {
	if kind == "img" {
		if dot := strings.LastIndex(url, "."); dot >= 0 {
			return url[dot:]
		}
		return ""
	}
	if strings.HasSuffix(url, ".mov") {
		return ".mov"
	}
	return ".mp4"
}
