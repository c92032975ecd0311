package filters

import "github.com/sergeygrin4/fb-job-parser-service/internal/types"

type Filter interface {
	Name() string
	Check(post types.Post) error
}

// Relevance combines filters with logical AND. The first rejection is returned.
type Relevance struct {
	filters []Filter
}

func NewRelevance(filters ...Filter) *Relevance {
	return &Relevance{filters: filters}
}

func (r *Relevance) Check(post types.Post) error {
	for _, f := range r.filters {
		if err := f.Check(post); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relevance) IsRelevant(post types.Post) bool {
	return r.Check(post) == nil
}
