// Package post defines the canonical types shared across subsystems.
package post

import "time"

// Post is one normalized feed entry. A retweeting Post embeds exactly one
// retweeted Post; the feed never nests deeper than one hop.
type Post struct {
	ID         int64     `json:"id"`
	BID        string    `json:"bid"`
	AuthorID   string    `json:"user_id"`
	AuthorName string    `json:"screen_name"`
	Text       string    `json:"text"`
	ImageURLs  []string  `json:"pics"`
	VideoURLs  []string  `json:"video_url"`
	Location   string    `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Likes      int64     `json:"attitudes_count"`
	Comments   int64     `json:"comments_count"`
	Reposts    int64     `json:"reposts_count"`
	Topics     []string  `json:"topics"`
	Mentions   []string  `json:"at_users"`
	Retweet    *Post     `json:"retweet,omitempty"`
}

// IsRetweet reports whether p embeds a retweeted post.
func (p *Post) IsRetweet() bool {
	return p != nil && p.Retweet != nil
}

// Clone returns a deep copy of p, including the embedded retweet.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.ImageURLs = append([]string(nil), p.ImageURLs...)
	cp.VideoURLs = append([]string(nil), p.VideoURLs...)
	cp.Topics = append([]string(nil), p.Topics...)
	cp.Mentions = append([]string(nil), p.Mentions...)
	cp.Retweet = p.Retweet.Clone()
	return &cp
}

// CloneBatch deep-copies a batch so one consumer's mutations never leak
// into another's.
func CloneBatch(batch []*Post) []*Post {
	if batch == nil {
		return nil
	}
	out := make([]*Post, len(batch))
	for i, p := range batch {
		out[i] = p.Clone()
	}
	return out
}

// User is the resolved identity of a harvested account.
type User struct {
	ID             string `json:"id"`
	ScreenName     string `json:"screen_name"`
	Gender         string `json:"gender"`
	StatusesCount  int64  `json:"statuses_count"`
	FollowersCount int64  `json:"followers_count"`
	FollowCount    int64  `json:"follow_count"`
	Description    string `json:"description"`
	ProfileURL     string `json:"profile_url"`
	AvatarHD       string `json:"avatar_hd"`
	Verified       bool   `json:"verified"`
	VerifiedReason string `json:"verified_reason"`
}

// Target is an account scheduled for harvesting. Cutoff is the earliest
// created-at date still considered new for the current run.
type Target struct {
	ID         string
	ScreenName string
	Cutoff     time.Time
}
