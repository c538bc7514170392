// Package normalize converts raw feed items into canonical posts.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/weibo-harvester/internal/feed"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// The location stanza has no class of its own; it is identified by the icon
// the feed renders next to it.
const locationIcon = "timeline_card_small_location_default.png"

const livePhotoPrefix = "https://video.weibo.com/media/play?livephoto=//us.sinaimg.cn/"

// Post normalizes one raw mblog into a canonical Post. It is pure: long-form
// resolution happens before this call, on the raw item. now anchors the
// relative created-at forms the feed serves for recent posts.
func Post(m *feed.Mblog, now time.Time) (*post.Post, error) {
	if m == nil {
		return nil, fmt.Errorf("normalize: nil mblog")
	}
	id, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("normalize: parse post id %q: %w", m.ID, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(m.Text))
	if err != nil {
		return nil, fmt.Errorf("normalize: parse text markup: %w", err)
	}

	createdAt, err := Date(m.CreatedAt, now)
	if err != nil {
		return nil, err
	}

	p := &post.Post{
		ID:        id,
		BID:       Scrub(m.BID),
		Text:      Scrub(doc.Text()),
		ImageURLs: imageURLs(m),
		VideoURLs: videoURLs(m),
		Location:  Scrub(location(doc)),
		CreatedAt: createdAt,
		Source:    Scrub(m.Source),
		Likes:     m.AttitudesCount.Int64(),
		Comments:  m.CommentsCount.Int64(),
		Reposts:   m.RepostsCount.Int64(),
		Topics:    topics(doc),
		Mentions:  mentions(doc),
	}
	if m.User != nil {
		p.AuthorID = m.User.ID.String()
		p.AuthorName = Scrub(m.User.ScreenName)
	}
	return p, nil
}

func imageURLs(m *feed.Mblog) []string {
	if len(m.Pics) == 0 {
		return nil
	}
	urls := make([]string, 0, len(m.Pics))
	for _, pic := range m.Pics {
		if pic.Large.URL != "" {
			urls = append(urls, pic.Large.URL)
		}
	}
	return urls
}

// videoURLs applies the resolution preference chain, then appends any
// live-photo companion assets.
func videoURLs(m *feed.Mblog) []string {
	var urls []string
	if pi := m.PageInfo; pi != nil && pi.Type == "video" && pi.MediaInfo != nil {
		mi := pi.MediaInfo
		for _, candidate := range []string{mi.MP4720p, mi.MP4HD, mi.MP4SD, mi.StreamHD, mi.Stream} {
			if candidate != "" {
				urls = append(urls, candidate)
				break
			}
		}
	}
	return append(urls, livePhotoURLs(m.PicVideo)...)
}

func livePhotoURLs(picVideo string) []string {
	if picVideo == "" {
		return nil
	}
	var urls []string
	for _, entry := range strings.Split(picVideo, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) == 2 {
			urls = append(urls, livePhotoPrefix+parts[1]+".mov")
		}
	}
	return urls
}

// location finds the span whose icon marks a check-in and returns the text
// of the span that follows it.
func location(doc *goquery.Document) string {
	spans := doc.Find("span")
	loc := ""
	spans.EachWithBreak(func(i int, s *goquery.Selection) bool {
		src, ok := s.Find("img").Attr("src")
		if ok && strings.Contains(src, locationIcon) {
			loc = spans.Eq(i + 1).Text()
			return false
		}
		return true
	})
	return loc
}

// topics collects #…# spans, delimiters stripped, first occurrence wins.
func topics(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	doc.Find("span.surl-text").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if len(text) > 2 && strings.HasPrefix(text, "#") && strings.HasSuffix(text, "#") {
			topic := strings.Trim(text, "#")
			if _, dup := seen[topic]; !dup {
				seen[topic] = struct{}{}
				out = append(out, topic)
			}
		}
	})
	return out
}

// mentions collects anchors whose /n/<handle> link target matches their own
// @<handle> display text.
func mentions(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "/n/") {
			return
		}
		if "@"+href[3:] != s.Text() {
			return
		}
		name := strings.TrimPrefix(s.Text(), "@")
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	})
	return out
}

// Date standardizes the feed's created-at forms to a date with no
// time-of-day precision. Recent posts are served relative to now (刚刚,
// N分钟, N小时, 昨天), posts from the current year as MM-DD, and older ones
// as YYYY-MM-DD.
func Date(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.Contains(raw, "刚刚"):
		return truncate(now), nil
	case strings.Contains(raw, "分钟"):
		n, err := strconv.Atoi(raw[:strings.Index(raw, "分钟")])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
		}
		return truncate(now.Add(-time.Duration(n) * time.Minute)), nil
	case strings.Contains(raw, "小时"):
		n, err := strconv.Atoi(raw[:strings.Index(raw, "小时")])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
		}
		return truncate(now.Add(-time.Duration(n) * time.Hour)), nil
	case strings.Contains(raw, "昨天"):
		return truncate(now.AddDate(0, 0, -1)), nil
	case strings.Count(raw, "-") == 1:
		t, err := time.Parse("2006-01-02", fmt.Sprintf("%d-%s", now.Year(), raw))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
		}
		return t, nil
	default:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
		}
		return t, nil
	}
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Scrub removes zero-width characters the feed sprinkles into text fields.
func Scrub(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, s)
}
