package status

import (
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/cache"
)

type feedFormat string

const (
	formatRSS  feedFormat = "rss"
	formatAtom feedFormat = "atom"
	formatJSON feedFormat = "json"
)

// Rendered feeds are cached briefly so readers polling the endpoints do not hit the
// journal on every request.
func newFeedCache(ttl time.Duration) *cache.Cache[feedFormat, string] {
	return cache.NewCache[feedFormat, string](cache.CacheConfig{TTL: ttl}, func(f feedFormat) string {
		return "feed:" + string(f)
	})
}
