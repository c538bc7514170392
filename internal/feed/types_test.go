package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"57", 57},
		{"1.2万", 12000},
		{"3万+", 30000},
		{"100万", 1000000},
		{" 42 ", 42},
	}
	for _, tc := range cases {
		got, err := ParseCount(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseCount("many")
	require.Error(t, err)
}

func TestCountUnmarshalAcceptsBothEncodings(t *testing.T) {
	t.Parallel()

	var m Mblog
	payload := `{
		"id": "4500000000000001",
		"attitudes_count": 57,
		"comments_count": "1.2万",
		"reposts_count": "3万+"
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &m))
	require.Equal(t, int64(57), m.AttitudesCount.Int64())
	require.Equal(t, int64(12000), m.CommentsCount.Int64())
	require.Equal(t, int64(30000), m.RepostsCount.Int64())
}

func TestCardIsPost(t *testing.T) {
	t.Parallel()

	require.True(t, Card{CardType: CardTypePost, Mblog: &Mblog{}}.IsPost())
	require.False(t, Card{CardType: 11, Mblog: &Mblog{}}.IsPost())
	require.False(t, Card{CardType: CardTypePost}.IsPost())
}

func TestIsPinned(t *testing.T) {
	t.Parallel()

	require.True(t, (&Mblog{Title: &CardTitle{Text: "置顶"}}).IsPinned())
	require.False(t, (&Mblog{Title: &CardTitle{Text: "热门"}}).IsPinned())
	require.False(t, (&Mblog{}).IsPinned())
}
