package core

import (
	"sync"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/cache"
)

// suppressor pauses fetching after a permanent failure. The pause lifts when the
// credentials in use change or the entry expires.
type suppressor struct {
	mu      sync.Mutex
	entries *cache.Cache[string, string]
	ttl     time.Duration
}

func newSuppressor(ttl time.Duration) *suppressor {
	return &suppressor{
		entries: cache.NewCache[string, string](cache.CacheConfig{TTL: ttl}, func(k string) string { return "suppress:" + k }),
		ttl:     ttl,
	}
}

// active reports whether provider is paused for the credentials identified by credFP.
// A paused entry recorded under different credentials is dropped.
func (s *suppressor) active(provider, credFP string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trippedFP, ok := s.entries.Get(provider)
	if !ok {
		return false, false
	}
	if trippedFP != credFP {
		s.entries.InvalidateKey(provider)
		return false, true
	}
	return true, false
}

// trip pauses provider and reports whether this call was the first to do so.
func (s *suppressor) trip(provider, credFP string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries.Get(provider); ok && existing == credFP {
		return false
	}
	s.entries.SetWithTTL(provider, credFP, s.ttl)
	return true
}

// until reports when the pause on provider lifts by itself.
func (s *suppressor) until(provider string) time.Time {
	_, expires, _ := s.entries.GetWithExpiration(provider)
	return expires
}
