package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvBaseHeader = []string{
	"id", "bid", "text", "pics", "video_url", "location", "created_at",
	"source", "attitudes_count", "comments_count", "reposts_count",
	"topics", "at_users",
}

// CSV appends batches to a per-target comma-separated file. The header (and
// a UTF-8 byte-order mark) are written only on the very first batch of a
// run's output. When the retweet filter is inactive, the retweeted sub-post
// is flattened into prefixed sibling columns.
type CSV struct {
	dir            string
	includeRetweet bool
}

// NewCSV returns a CSV sink rooted at dir.
func NewCSV(dir string, includeRetweet bool) *CSV {
	return &CSV{dir: dir, includeRetweet: includeRetweet}
}

// Name implements Sink.
func (s *CSV) Name() string { return "csv" }

// Write implements Sink.
func (s *CSV) Write(ctx context.Context, user *post.User, batch []*post.Post, firstBatch bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, user.ScreenName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create csv dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, user.ID+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()

	if firstBatch {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if firstBatch {
		if err := w.Write(s.header()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, p := range batch {
		if err := w.Write(s.row(p)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv %s: %w", path, err)
	}
	return nil
}

func (s *CSV) header() []string {
	header := append([]string(nil), csvBaseHeader...)
	if s.includeRetweet {
		header = append(header, "is_original")
		for _, h := range csvBaseHeader {
			header = append(header, "retweet_"+h)
		}
	}
	return header
}

func (s *CSV) row(p *post.Post) []string {
	row := fields(p)
	if s.includeRetweet {
		row = append(row, strconv.FormatBool(!p.IsRetweet()))
		if p.IsRetweet() {
			row = append(row, fields(p.Retweet)...)
		} else {
			row = append(row, make([]string, len(csvBaseHeader))...)
		}
	}
	return row
}

func fields(p *post.Post) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.BID,
		p.Text,
		strings.Join(p.ImageURLs, ","),
		strings.Join(p.VideoURLs, ";"),
		p.Location,
		p.CreatedAt.Format(time.DateOnly),
		p.Source,
		strconv.FormatInt(p.Likes, 10),
		strconv.FormatInt(p.Comments, 10),
		strconv.FormatInt(p.Reposts, 10),
		strings.Join(p.Topics, ","),
		strings.Join(p.Mentions, ","),
	}
}
