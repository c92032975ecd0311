package names

const (
	KeywordFilter = "filter_keyword"
	RecencyFilter = "filter_recency"
)
