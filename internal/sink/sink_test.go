package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

type recordSink struct {
	name    string
	batches [][]*post.Post
	mutate  bool
	fail    bool
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Write(_ context.Context, _ *post.User, batch []*post.Post, _ bool) error {
	if s.fail {
		return errors.New(s.name + ": refused")
	}
	if s.mutate {
		for _, p := range batch {
			p.Text = "scribbled over"
		}
	}
	s.batches = append(s.batches, batch)
	return nil
}

func testUser() *post.User {
	return &post.User{ID: "123456", ScreenName: "observer"}
}

func TestFanoutIsolatesSinksFromEachOther(t *testing.T) {
	t.Parallel()

	first := &recordSink{name: "first", mutate: true}
	second := &recordSink{name: "second"}
	f := NewFanout([]Sink{first, second}, zap.NewNop())
	require.Equal(t, 2, f.Len())

	batch := []*post.Post{{ID: 1, Text: "original text", Retweet: &post.Post{ID: 2, Text: "inner"}}}
	require.NoError(t, f.Write(context.Background(), testUser(), batch, true))

	// The first sink scribbling on its copy must not leak into the second's.
	require.Equal(t, "original text", second.batches[0][0].Text)
	require.Equal(t, "inner", second.batches[0][0].Retweet.Text)
}

func TestFanoutOneFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bad := &recordSink{name: "bad", fail: true}
	good := &recordSink{name: "good"}
	f := NewFanout([]Sink{bad, good}, zap.NewNop())

	err := f.Write(context.Background(), testUser(), []*post.Post{{ID: 1}}, true)
	require.Error(t, err)
	require.Len(t, good.batches, 1)
}

func TestFanoutEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s := &recordSink{name: "only"}
	f := NewFanout([]Sink{s}, zap.NewNop())
	require.NoError(t, f.Write(context.Background(), testUser(), nil, true))
	require.Empty(t, s.batches)
}
