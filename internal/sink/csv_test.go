package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/weibo-harvester/internal/post"
)

func samplePost(id int64) *post.Post {
	return &post.Post{
		ID:        id,
		BID:       "Jx001",
		AuthorID:  "123456",
		Text:      "a walk in the park",
		ImageURLs: []string{"https://img/a.jpg", "https://img/b.jpg"},
		VideoURLs: []string{"https://video/a.mp4"},
		Location:  "West Lake",
		CreatedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Source:    "iPhone 15",
		Likes:     12000,
		Comments:  57,
		Reposts:   3,
		Topics:    []string{"citymarathon"},
		Mentions:  []string{"runbuddy"},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, utf8BOM))
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVHeaderWrittenOnceAcrossBatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewCSV(dir, false)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testUser(), []*post.Post{samplePost(101), samplePost(102)}, true))
	require.NoError(t, s.Write(ctx, testUser(), []*post.Post{samplePost(103)}, false))

	records := readCSV(t, filepath.Join(dir, "observer", "123456.csv"))
	require.Len(t, records, 4)
	require.Equal(t, csvBaseHeader, records[0])
	require.Equal(t, "101", records[1][0])
	require.Equal(t, "103", records[3][0])

	row := records[1]
	require.Equal(t, "a walk in the park", row[2])
	require.Equal(t, "https://img/a.jpg,https://img/b.jpg", row[3])
	require.Equal(t, "https://video/a.mp4", row[4])
	require.Equal(t, "2026-08-20", row[6])
	require.Equal(t, "12000", row[8])
}

func TestCSVFlattensRetweetColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewCSV(dir, true)

	rt := samplePost(101)
	rt.Retweet = samplePost(201)
	rt.Retweet.Text = "the retweeted original"
	original := samplePost(102)

	require.NoError(t, s.Write(context.Background(), testUser(), []*post.Post{rt, original}, true))

	records := readCSV(t, filepath.Join(dir, "observer", "123456.csv"))
	require.Len(t, records, 3)

	header := records[0]
	require.Len(t, header, 2*len(csvBaseHeader)+1)
	require.Equal(t, "is_original", header[len(csvBaseHeader)])
	require.Equal(t, "retweet_id", header[len(csvBaseHeader)+1])

	retweetRow := records[1]
	require.Equal(t, "false", retweetRow[len(csvBaseHeader)])
	require.Equal(t, "201", retweetRow[len(csvBaseHeader)+1])
	require.Equal(t, "the retweeted original", retweetRow[len(csvBaseHeader)+3])

	originalRow := records[2]
	require.Equal(t, "true", originalRow[len(csvBaseHeader)])
	require.Equal(t, "", originalRow[len(csvBaseHeader)+1])
}
