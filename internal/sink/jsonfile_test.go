package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

func readDocument(t *testing.T, path string) jsonDocument {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc jsonDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestJSONFileMergesByID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewJSONFile(dir)
	ctx := context.Background()
	path := filepath.Join(dir, "observer", "123456.json")

	require.NoError(t, s.Write(ctx, testUser(), []*post.Post{samplePost(101), samplePost(102)}, true))

	updated := samplePost(101)
	updated.Likes = 99999
	require.NoError(t, s.Write(ctx, testUser(), []*post.Post{updated, samplePost(103)}, false))

	doc := readDocument(t, path)
	require.Equal(t, "123456", doc.Target.ID)
	require.Len(t, doc.Posts, 3)
	require.Equal(t, int64(101), doc.Posts[0].ID)
	require.Equal(t, int64(99999), doc.Posts[0].Likes)
	require.Equal(t, int64(102), doc.Posts[1].ID)
	require.Equal(t, int64(103), doc.Posts[2].ID)
}

func TestJSONFileRewriteIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewJSONFile(dir)
	ctx := context.Background()
	batch := []*post.Post{samplePost(101)}

	require.NoError(t, s.Write(ctx, testUser(), batch, true))
	first := readDocument(t, filepath.Join(dir, "observer", "123456.json"))

	require.NoError(t, s.Write(ctx, testUser(), batch, false))
	second := readDocument(t, filepath.Join(dir, "observer", "123456.json"))

	require.Equal(t, first, second)
	require.Len(t, second.Posts, 1)
}
