// Package feed implements the m.weibo.cn container API client and the raw
// wire shapes it returns.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Card types other than feed posts (ads, search hints, user groups) exist in
// the container stream and are ignored.
const CardTypePost = 9

const pinnedTitle = "置顶"

// IndexResponse is the envelope of every getIndex call. The upstream "ok"
// field is the integer 1/0, not a JSON bool.
type IndexResponse struct {
	Ok   int       `json:"ok"`
	Data IndexData `json:"data"`
}

// IndexData carries either a page of cards or a userInfo payload depending
// on the containerid prefix.
type IndexData struct {
	Cards    []Card    `json:"cards"`
	UserInfo *UserInfo `json:"userInfo"`
}

// Card is one entry of a feed page.
type Card struct {
	CardType int    `json:"card_type"`
	Mblog    *Mblog `json:"mblog"`
}

// IsPost reports whether the card is a feed post.
func (c Card) IsPost() bool {
	return c.CardType == CardTypePost && c.Mblog != nil
}

// UserInfo is the raw identity payload of a target account.
type UserInfo struct {
	ScreenName      string `json:"screen_name"`
	Gender          string `json:"gender"`
	StatusesCount   Count  `json:"statuses_count"`
	FollowersCount  Count  `json:"followers_count"`
	FollowCount     Count  `json:"follow_count"`
	Description     string `json:"description"`
	ProfileURL      string `json:"profile_url"`
	ProfileImageURL string `json:"profile_image_url"`
	AvatarHD        string `json:"avatar_hd"`
	Verified        bool   `json:"verified"`
	VerifiedReason  string `json:"verified_reason"`
}

// Mblog is the raw shape of one post as served by the feed. A retweeting
// mblog embeds the retweeted one; the feed never nests deeper.
type Mblog struct {
	ID              string      `json:"id"`
	BID             string      `json:"bid"`
	Text            string      `json:"text"`
	CreatedAt       string      `json:"created_at"`
	Source          string      `json:"source"`
	AttitudesCount  Count       `json:"attitudes_count"`
	CommentsCount   Count       `json:"comments_count"`
	RepostsCount    Count       `json:"reposts_count"`
	IsLongText      bool        `json:"isLongText"`
	User            *MblogUser  `json:"user"`
	Pics            []Pic       `json:"pics"`
	PicVideo        string      `json:"pic_video"`
	PageInfo        *PageInfo   `json:"page_info"`
	RetweetedStatus *Mblog      `json:"retweeted_status"`
	Title           *CardTitle  `json:"title"`
}

// MblogUser is the author stanza inside an mblog.
type MblogUser struct {
	ID         json.Number `json:"id"`
	ScreenName string      `json:"screen_name"`
}

// Pic is one image attachment; only the full-resolution URL is harvested.
type Pic struct {
	Large struct {
		URL string `json:"url"`
	} `json:"large"`
}

// PageInfo carries the video attachment, when present.
type PageInfo struct {
	Type      string     `json:"type"`
	MediaInfo *MediaInfo `json:"media_info"`
}

// MediaInfo lists the candidate video URLs in no particular order; callers
// apply the resolution preference chain.
type MediaInfo struct {
	MP4720p  string `json:"mp4_720p_mp4"`
	MP4HD    string `json:"mp4_hd_url"`
	MP4SD    string `json:"mp4_sd_url"`
	StreamHD string `json:"stream_url_hd"`
	Stream   string `json:"stream_url"`
}

// CardTitle flags special feed placements, e.g. the pinned post.
type CardTitle struct {
	Text string `json:"text"`
}

// IsPinned reports whether the mblog is the target's pinned post.
func (m *Mblog) IsPinned() bool {
	return m != nil && m.Title != nil && m.Title.Text == pinnedTitle
}

// Count is an engagement counter that the feed serves either as a plain
// number or as a unit-suffixed string like "1.2万" or "3万+".
type Count int64

// UnmarshalJSON accepts both encodings.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("unmarshal count: %w", err)
		}
		n, err := ParseCount(s)
		if err != nil {
			return err
		}
		*c = Count(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("unmarshal count: %w", err)
	}
	*c = Count(int64(f))
	return nil
}

// Int64 returns the counter value.
func (c Count) Int64() int64 {
	return int64(c)
}

// ParseCount parses an engagement counter string. A trailing 万 suffix
// (optionally followed by +) multiplies the numeric prefix by 10,000.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))
	if rest, ok := strings.CutSuffix(s, "万"); ok {
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return 0, fmt.Errorf("parse count %q: %w", s, err)
		}
		return int64(math.Round(f * 10000)), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	return n, nil
}
