package post

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &Post{
		ID:        101,
		Text:      "original",
		ImageURLs: []string{"a.jpg"},
		Topics:    []string{"topic"},
		CreatedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Retweet:   &Post{ID: 201, Text: "inner", Mentions: []string{"someone"}},
	}

	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Text = "changed"
	cp.ImageURLs[0] = "b.jpg"
	cp.Retweet.Mentions[0] = "other"
	require.Equal(t, "original", orig.Text)
	require.Equal(t, "a.jpg", orig.ImageURLs[0])
	require.Equal(t, "someone", orig.Retweet.Mentions[0])

	var nilPost *Post
	require.Nil(t, nilPost.Clone())
}

func TestCloneBatch(t *testing.T) {
	t.Parallel()

	batch := []*Post{{ID: 1, Topics: []string{"x"}}, {ID: 2}}
	cp := CloneBatch(batch)
	require.Equal(t, batch, cp)
	cp[0].Topics[0] = "y"
	require.Equal(t, "x", batch[0].Topics[0])
	require.Nil(t, CloneBatch(nil))
}

func TestIsRetweet(t *testing.T) {
	t.Parallel()

	require.False(t, (&Post{}).IsRetweet())
	require.True(t, (&Post{Retweet: &Post{}}).IsRetweet())
	var nilPost *Post
	require.False(t, nilPost.IsRetweet())
}
