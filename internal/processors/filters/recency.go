package filters

import (
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/processors/names"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// RecencyFilter keeps posts created on the current UTC calendar day. When disabled
// every post passes, including those with an unknown timestamp.
type RecencyFilter struct {
	enabled bool
	now     func() time.Time
}

func NewRecencyFilter(enabled bool, now func() time.Time) *RecencyFilter {
	if now == nil {
		now = time.Now
	}
	return &RecencyFilter{enabled: enabled, now: now}
}

func (f *RecencyFilter) Name() string {
	return names.RecencyFilter
}

func (f *RecencyFilter) Check(post types.Post) error {
	if !f.enabled {
		return nil
	}

	if !post.HasTimestamp() {
		return types.NewFilteredError(f.Name(), "timestamp unknown")
	}

	created := post.CreatedAt.UTC()
	today := f.now().UTC()
	if created.Year() != today.Year() || created.YearDay() != today.YearDay() {
		return types.NewFilteredError(f.Name(), "not created today").
			WithDetail("created_at", created).
			WithDetail("today", today.Format(time.DateOnly))
	}

	return nil
}
