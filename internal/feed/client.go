package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/weibo-harvester/internal/clock"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// ErrNotFound is returned when identity resolution reports not-ok: the
// target has been removed, suspended, or never existed.
var ErrNotFound = errors.New("feed: target does not exist")

// Container prefixes for the getIndex endpoint.
const (
	feedContainerPrefix = "107603"
	userContainerPrefix = "100505"
)

const (
	defaultBaseURL   = "https://m.weibo.cn"
	defaultUserAgent = "weibo-harvester/0.1"

	longTextAttempts    = 5
	longTextRetryLowSec = 6
	longTextRetryHiSec  = 10
)

// Config controls the feed client.
type Config struct {
	BaseURL           string
	UserAgent         string
	Cookie            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the container API. All calls are sequential by design;
// the limiter only bounds burst rate on top of the crawl pacing.
type Client struct {
	http    *http.Client
	base    string
	ua      string
	cookie  string
	limiter *rate.Limiter
	sleeper clock.Sleeper
	logger  *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config, sleeper clock.Sleeper, logger *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	if sleeper == nil {
		sleeper = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    base,
		ua:      ua,
		cookie:  cfg.Cookie,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		sleeper: sleeper,
		logger:  logger,
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("limiter wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) getIndex(ctx context.Context, params url.Values) (*IndexResponse, error) {
	u := fmt.Sprintf("%s/api/container/getIndex?%s", c.base, params.Encode())
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var idx IndexResponse
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}
	return &idx, nil
}

// UserInfo resolves a target's identity and total post count. A not-ok
// response maps to ErrNotFound.
func (c *Client) UserInfo(ctx context.Context, userID string) (*post.User, error) {
	params := url.Values{}
	params.Set("containerid", userContainerPrefix+userID)
	idx, err := c.getIndex(ctx, params)
	if err != nil {
		return nil, err
	}
	if idx.Ok != 1 || idx.Data.UserInfo == nil {
		return nil, ErrNotFound
	}
	info := idx.Data.UserInfo
	return &post.User{
		ID:             userID,
		ScreenName:     info.ScreenName,
		Gender:         info.Gender,
		StatusesCount:  info.StatusesCount.Int64(),
		FollowersCount: info.FollowersCount.Int64(),
		FollowCount:    info.FollowCount.Int64(),
		Description:    info.Description,
		ProfileURL:     info.ProfileURL,
		AvatarHD:       info.AvatarHD,
		Verified:       info.Verified,
		VerifiedReason: info.VerifiedReason,
	}, nil
}

// Page fetches one page of a target's feed container. A not-ok page is
// served as empty; the page loop is bounded by the page count, not by
// per-page status.
func (c *Client) Page(ctx context.Context, userID string, page int) ([]Card, error) {
	params := url.Values{}
	params.Set("containerid", feedContainerPrefix+userID)
	params.Set("page", fmt.Sprintf("%d", page))
	idx, err := c.getIndex(ctx, params)
	if err != nil {
		return nil, err
	}
	if idx.Ok != 1 {
		return nil, nil
	}
	return idx.Data.Cards, nil
}

// LongPost fetches the full text of a truncated post from its detail page.
// It retries on an empty or invalid payload with a randomized 6-10s delay
// between attempts and returns (nil, nil) once retries are exhausted; the
// caller falls back to the short-form item.
func (c *Client) LongPost(ctx context.Context, postID string) (*Mblog, error) {
	for attempt := 0; attempt < longTextAttempts; attempt++ {
		if attempt > 0 {
			c.sleeper.Sleep(clock.RandomSeconds(longTextRetryLowSec, longTextRetryHiSec))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := c.get(ctx, fmt.Sprintf("%s/detail/%s", c.base, postID))
		if err != nil {
			c.logger.Debug("long-text fetch failed",
				zap.String("post_id", postID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		if m, ok := extractStatus(string(body)); ok {
			return m, nil
		}
	}
	return nil, nil
}

// Download fetches one media file, retrying transient failures.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	const attempts = 5
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		body, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("download %s: %w", rawURL, lastErr)
}
