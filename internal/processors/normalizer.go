package processors

import (
	"encoding/json"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

// minEpochDigits is the shortest numeric string read as epoch seconds (1973 onwards).
const minEpochDigits = 9

type Normalizer struct {
	aliases AliasTable
	policy  *bluemonday.Policy
}

func NewNormalizer(aliases AliasTable) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Normalizer{
		aliases: aliases,
		policy:  bluemonday.StrictPolicy(),
	}
}

// Normalize maps a provider record onto a Post. It reports false when the record has
// neither text nor url, which makes it undeliverable.
func (n *Normalizer) Normalize(raw types.RawItem, src types.Source) (types.Post, bool) {
	post := types.Post{
		Text:          n.cleanText(n.firstString(raw, FieldText)),
		URL:           strings.TrimSpace(n.firstString(raw, FieldURL)),
		AuthorURL:     n.author(raw),
		CreatedAt:     n.timestamp(raw),
		SourceAddress: src.CanonicalAddress,
		SourceName:    src.DisplayName(),
	}

	if post.Text == "" && post.URL == "" {
		return types.Post{}, false
	}
	return post, true
}

func (n *Normalizer) firstString(raw types.RawItem, field Field) string {
	for _, key := range n.aliases[field] {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s := stringValue(v); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func (n *Normalizer) author(raw types.RawItem) string {
	for _, key := range n.aliases[FieldAuthor] {
		switch v := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]interface{}:
			for _, nested := range nestedURLKeys {
				if s, ok := v[nested].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func (n *Normalizer) timestamp(raw types.RawItem) time.Time {
	for _, key := range n.aliases[FieldTimestamp] {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if ts := ParseTimestamp(v); !ts.IsZero() {
			return ts
		}
	}
	return time.Time{}
}

func (n *Normalizer) cleanText(text string) string {
	if strings.ContainsRune(text, '<') {
		text = html.UnescapeString(n.policy.Sanitize(text))
	}
	return strings.TrimSpace(norm.NFC.String(text))
}

// ParseTimestamp accepts epoch seconds or milliseconds (numeric or numeric string) and
// date strings. Anything else yields the zero time, meaning unknown.
func ParseTimestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case float64:
		return fromEpoch(t)
	case float32:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	case int64:
		return fromEpoch(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}
		}
		return fromEpoch(f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		f, numErr := strconv.ParseFloat(s, 64)
		if numErr == nil && epochDigits(s) {
			return fromEpoch(f)
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC()
		}
		if ts, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return ts.UTC()
		}
		if numErr == nil {
			return fromEpoch(f)
		}
	}
	return time.Time{}
}

// epochDigits reports whether a numeric string is long enough to be an epoch value.
// Shorter runs such as "20240510" are compact dates.
func epochDigits(s string) bool {
	whole, _, _ := strings.Cut(s, ".")
	return len(strings.TrimLeft(whole, "+-")) >= minEpochDigits
}

func fromEpoch(f float64) time.Time {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	if f > epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
