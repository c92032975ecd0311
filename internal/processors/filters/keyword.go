package filters

import (
	"strings"

	"github.com/sergeygrin4/fb-job-parser-service/internal/processors/names"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// KeywordFilter is a case-insensitive substring match. It does not tokenize, so a
// keyword matches inside longer words.
type KeywordFilter struct {
	keywords []string
}

func NewKeywordFilter(keywords []string) *KeywordFilter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &KeywordFilter{keywords: lowered}
}

func (f *KeywordFilter) Name() string {
	return names.KeywordFilter
}

func (f *KeywordFilter) Keywords() []string {
	return f.keywords
}

func (f *KeywordFilter) Check(post types.Post) error {
	if len(f.keywords) == 0 {
		return nil
	}

	text := strings.ToLower(post.Text)
	for _, kw := range f.keywords {
		if strings.Contains(text, kw) {
			return nil
		}
	}

	return types.NewFilteredError(f.Name(), "no keyword matched").
		WithDetail("keywords", len(f.keywords))
}
