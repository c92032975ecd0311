package processors

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

var testSource = types.Source{
	Identifier:       "123",
	CanonicalAddress: "https://www.facebook.com/groups/123",
	Name:             "Go jobs",
}

func TestNormalize_AliasPriority(t *testing.T) {
	n := NewNormalizer(nil)

	post, ok := n.Normalize(types.RawItem{
		"message":  "second choice",
		"text":     "first choice",
		"link":     "https://example.com/l",
		"post_url": "https://www.facebook.com/groups/123/posts/9",
		"user":     map[string]interface{}{"profileUrl": "https://www.facebook.com/alice"},
	}, testSource)

	require.True(t, ok)
	assert.Equal(t, "first choice", post.Text)
	assert.Equal(t, "https://www.facebook.com/groups/123/posts/9", post.URL)
	assert.Equal(t, "https://www.facebook.com/alice", post.AuthorURL)
	assert.Equal(t, testSource.CanonicalAddress, post.SourceAddress)
	assert.Equal(t, "Go jobs", post.SourceName)
	assert.False(t, post.HasTimestamp())
}

func TestNormalize_SkipsEmptyAliases(t *testing.T) {
	n := NewNormalizer(nil)

	post, ok := n.Normalize(types.RawItem{"text": "   ", "content": "fallback body"}, testSource)
	require.True(t, ok)
	assert.Equal(t, "fallback body", post.Text)
}

func TestNormalize_DropsUndeliverable(t *testing.T) {
	n := NewNormalizer(nil)

	_, ok := n.Normalize(types.RawItem{"time": 1700000000, "likes": 3}, testSource)
	assert.False(t, ok)

	_, ok = n.Normalize(types.RawItem{}, testSource)
	assert.False(t, ok)
}

func TestNormalize_URLOnly(t *testing.T) {
	post, ok := NewNormalizer(nil).Normalize(types.RawItem{"url": "https://x/1"}, testSource)
	require.True(t, ok)
	assert.Empty(t, post.Text)
	assert.Equal(t, "https://x/1", post.URL)
}

func TestNormalize_CleansMarkup(t *testing.T) {
	post, ok := NewNormalizer(nil).Normalize(types.RawItem{
		"text": "<p>Hiring <b>Go</b> devs &amp; SREs</p>",
	}, testSource)
	require.True(t, ok)
	assert.Equal(t, "Hiring Go devs & SREs", post.Text)

	post, ok = NewNormalizer(nil).Normalize(types.RawItem{"text": "\u0438\u0306 job"}, testSource)
	require.True(t, ok)
	assert.Equal(t, "\u0439 job", post.Text)
}

func TestNormalize_CustomAliases(t *testing.T) {
	aliases := DefaultAliases.Merge(AliasTable{FieldText: {"body_html"}})
	post, ok := NewNormalizer(aliases).Normalize(types.RawItem{"text": "ignored", "body_html": "used"}, testSource)
	require.True(t, ok)
	assert.Equal(t, "used", post.Text)
	assert.Equal(t, "text", DefaultAliases[FieldText][0])
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   interface{}
	}{
		{"epoch seconds float", float64(want.Unix())},
		{"epoch seconds int", want.Unix()},
		{"epoch millis", float64(want.UnixMilli())},
		{"epoch string", "1709296200"},
		{"millis string", "1709296200000"},
		{"json number", json.Number("1709296200")},
		{"rfc3339", "2024-03-01T12:30:00Z"},
		{"rfc3339 offset", "2024-03-01T15:30:00+03:00"},
		{"naive datetime", "2024-03-01 12:30:00"},
		{"time value", want.In(time.FixedZone("X", 3600))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, want.Equal(ParseTimestamp(tc.in)), "got %v", ParseTimestamp(tc.in))
		})
	}
}

func TestParseTimestamp_CompactDateIsNotEpoch(t *testing.T) {
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), ParseTimestamp("20240510"))
	assert.Equal(t, time.Unix(123456789, 0).UTC(), ParseTimestamp("123456789"))
}

func TestParseTimestamp_Unknown(t *testing.T) {
	for _, in := range []interface{}{"yesterday-ish", "", nil, true, -5, map[string]interface{}{}} {
		assert.True(t, ParseTimestamp(in).IsZero(), "%v", in)
	}
}

func TestNormalize_TimestampAliasFallsThrough(t *testing.T) {
	post, ok := NewNormalizer(nil).Normalize(types.RawItem{
		"text":       "x",
		"time":       "not a date",
		"created_at": "2024-03-01T12:30:00Z",
	}, testSource)
	require.True(t, ok)
	assert.Equal(t, 2024, post.CreatedAt.Year())
}
