package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

func TestBufferDedupesByID(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	require.True(t, b.Add(&post.Post{ID: 1}))
	require.True(t, b.Add(&post.Post{ID: 2}))
	require.False(t, b.Add(&post.Post{ID: 1}))
	require.True(t, b.Seen(2))
	require.False(t, b.Seen(3))
	require.Equal(t, 2, b.Len())
}

func TestBufferFlushWatermark(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.Add(&post.Post{ID: 1})
	b.Add(&post.Post{ID: 2})

	batch := b.Unflushed()
	require.Len(t, batch, 2)
	require.Equal(t, 0, b.FlushedCount())
	b.MarkFlushed()
	require.Equal(t, 2, b.FlushedCount())
	require.Empty(t, b.Unflushed())

	b.Add(&post.Post{ID: 3})
	batch = b.Unflushed()
	require.Len(t, batch, 1)
	require.Equal(t, int64(3), batch[0].ID)
	b.MarkFlushed()
	require.Empty(t, b.Unflushed())
	require.Equal(t, 3, b.Len())
}
