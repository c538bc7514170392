package crawl

import "github.com/JakeFAU/weibo-harvester/internal/post"

// Buffer accumulates the posts accepted for the active target and tracks
// the flush watermark. Dedup key is the post id; cross-run dedup comes from
// the ledger cutoff, not from re-checking sink contents.
type Buffer struct {
	posts   []*post.Post
	seen    map[int64]struct{}
	flushed int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{seen: make(map[int64]struct{})}
}

// Seen reports whether id was already accepted this run.
func (b *Buffer) Seen(id int64) bool {
	_, ok := b.seen[id]
	return ok
}

// Add appends p unless its id was already accepted; it reports whether the
// post was retained.
func (b *Buffer) Add(p *post.Post) bool {
	if b.Seen(p.ID) {
		return false
	}
	b.seen[p.ID] = struct{}{}
	b.posts = append(b.posts, p)
	return true
}

// Unflushed returns the suffix not yet handed to the sinks. The slice
// aliases the buffer; callers must flush before the next Add.
func (b *Buffer) Unflushed() []*post.Post {
	return b.posts[b.flushed:]
}

// MarkFlushed advances the watermark past everything returned by the last
// Unflushed call.
func (b *Buffer) MarkFlushed() {
	b.flushed = len(b.posts)
}

// FlushedCount returns how many posts have been handed to the sinks.
func (b *Buffer) FlushedCount() int {
	return b.flushed
}

// Len returns the number of accepted posts.
func (b *Buffer) Len() int {
	return len(b.posts)
}
