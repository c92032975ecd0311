package processors

type Field string

const (
	FieldText      Field = "text"
	FieldURL       Field = "url"
	FieldTimestamp Field = "timestamp"
	FieldAuthor    Field = "author"
)

// AliasTable lists, per canonical field, the raw keys to try in priority order.
type AliasTable map[Field][]string

var DefaultAliases = AliasTable{
	FieldText:      {"text", "post_text", "message", "content", "body", "description", "caption", "title"},
	FieldURL:       {"post_url", "url", "permalink", "link", "postUrl", "facebookUrl"},
	FieldTimestamp: {"time", "timestamp", "created_at", "createdAt", "date", "published", "publishedAt", "created_time"},
	FieldAuthor:    {"author_url", "authorUrl", "user_url", "profile_url", "author", "user"},
}

// nestedURLKeys are consulted when an author alias holds an object instead of a string.
var nestedURLKeys = []string{"url", "profileUrl", "profile_url", "link"}

// Merge returns a copy of t where fields present in override replace the defaults.
func (t AliasTable) Merge(override AliasTable) AliasTable {
	merged := make(AliasTable, len(t))
	for field, keys := range t {
		merged[field] = append([]string(nil), keys...)
	}
	for field, keys := range override {
		if len(keys) > 0 {
			merged[field] = append([]string(nil), keys...)
		}
	}
	return merged
}
