package crawl

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/ledger"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

type countingSleeper struct {
	calls atomic.Int64
}

func (s *countingSleeper) Sleep(time.Duration) {
	s.calls.Add(1)
}

func TestSchedulerKeepsLedgerCurrent(t *testing.T) {
	t.Parallel()

	fixture := newFeedFixture()
	fixture.statuses["111"] = 0 // resolves, nothing to page through
	fixture.broken["333"] = true
	crawler, _ := newTestCrawler(t, fixture, Config{})

	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("111\n222 old 2026-01-01\n333\n"), 0o600))
	sleeper := &countingSleeper{}
	s := NewScheduler(crawler, ledger.NewFile(path), sleeper, zap.NewNop())

	err := s.Run(context.Background(), []post.Target{{ID: "111"}, {ID: "222"}, {ID: "333"}})
	require.NoError(t, err)

	raw, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	// 111 finished and records its resume cutoff, 222 does not exist and is
	// dropped, 333 failed transiently and keeps its line for the next run.
	require.Equal(t, "111 observer 2026-08-30\n333\n", string(raw))

	// One pacing pause at the head of the schedule.
	require.Equal(t, int64(1), sleeper.calls.Load())

	// The transient failure was retried once before being skipped.
	require.Equal(t, 2, fixture.hitCount("user/333"))
}

func TestSchedulerKeepsOldCutoffWhenInterruptedMidPaging(t *testing.T) {
	t.Parallel()

	fixture := newFeedFixture()
	fixture.statuses["111"] = 30
	fixture.addPage("111", "1", cardJSON(103, "2026-08-26"), cardJSON(102, "2026-08-25"))
	fixture.addPage("111", "2", cardJSON(101, "2026-08-24"))
	fixture.addPage("111", "3", cardJSON(100, "2026-08-23"))

	// The interrupt lands while page 2 is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			cancel()
		}
		fixture.ServeHTTP(w, r)
	})
	crawler, _ := newTestCrawler(t, handler, Config{})

	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("111 observer 2026-08-01\n"), 0o600))
	s := NewScheduler(crawler, ledger.NewFile(path), &countingSleeper{}, zap.NewNop())

	err := s.Run(ctx, []post.Target{{
		ID:     "111",
		Cutoff: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, fixture.hitCount("page/111/3"))

	// The cutoff must not advance: the never-fetched tail would otherwise
	// be skipped forever on the next run.
	raw, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	require.Equal(t, "111 observer 2026-08-01\n", string(raw))
}

func TestSchedulerStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	fixture := newFeedFixture()
	crawler, _ := newTestCrawler(t, fixture, Config{})
	s := NewScheduler(crawler, nil, &countingSleeper{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, []post.Target{{ID: "111"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSchedulerNilLedgerIsFine(t *testing.T) {
	t.Parallel()

	fixture := newFeedFixture()
	fixture.statuses["111"] = 0
	crawler, _ := newTestCrawler(t, fixture, Config{})
	s := NewScheduler(crawler, nil, &countingSleeper{}, zap.NewNop())

	require.NoError(t, s.Run(context.Background(), []post.Target{{ID: "111"}, {ID: "404"}}))
}
