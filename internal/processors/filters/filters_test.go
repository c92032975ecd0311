package filters

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

func TestKeywordFilter(t *testing.T) {
	f := NewKeywordFilter([]string{"job", "Hiring"})

	assert.NoError(t, f.Check(types.Post{Text: "We are HIRING now"}))
	assert.NoError(t, f.Check(types.Post{Text: "Great jobs inside"}), "substring inside a word")

	err := f.Check(types.Post{Text: "nothing here"})
	require.Error(t, err)
	assert.True(t, types.IsFiltered(err))

	empty := NewKeywordFilter(nil)
	assert.NoError(t, empty.Check(types.Post{Text: "anything"}))
	assert.NoError(t, NewKeywordFilter([]string{" ", ""}).Check(types.Post{Text: "x"}))
}

func TestKeywordFilter_Cyrillic(t *testing.T) {
	f := NewKeywordFilter([]string{"вакансия"})
	assert.NoError(t, f.Check(types.Post{Text: "ВАКАНСИЯ: Go разработчик"}))
}

func TestRecencyFilter(t *testing.T) {
	now := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	enabled := NewRecencyFilter(true, clock)
	assert.NoError(t, enabled.Check(types.Post{CreatedAt: time.Date(2024, 5, 10, 0, 0, 1, 0, time.UTC)}))
	assert.Error(t, enabled.Check(types.Post{CreatedAt: time.Date(2024, 5, 9, 23, 59, 59, 0, time.UTC)}))
	assert.Error(t, enabled.Check(types.Post{CreatedAt: time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)}))
	assert.Error(t, enabled.Check(types.Post{}), "unknown timestamp rejected")

	// 2024-05-10 02:00 in UTC+3 is 2024-05-09 23:00 UTC
	msk := time.FixedZone("MSK", 3*3600)
	assert.Error(t, enabled.Check(types.Post{CreatedAt: time.Date(2024, 5, 10, 2, 0, 0, 0, msk)}))

	disabled := NewRecencyFilter(false, clock)
	assert.NoError(t, disabled.Check(types.Post{}))
	assert.NoError(t, disabled.Check(types.Post{CreatedAt: now.AddDate(0, 0, -3)}))
}

func TestRelevance_CombinesWithAnd(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	r := NewRelevance(NewKeywordFilter([]string{"job"}), NewRecencyFilter(true, func() time.Time { return now }))

	assert.True(t, r.IsRelevant(types.Post{Text: "job", CreatedAt: now}))
	assert.False(t, r.IsRelevant(types.Post{Text: "job", CreatedAt: now.AddDate(0, 0, -1)}))
	assert.False(t, r.IsRelevant(types.Post{Text: "other", CreatedAt: now}))

	err := r.Check(types.Post{Text: "job"})
	var fe *types.FilteredError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "filter_recency", fe.FilterName)

	assert.True(t, NewRelevance().IsRelevant(types.Post{}))
}

func TestDedupeStore_RecordThenSeen(t *testing.T) {
	d := NewDedupeStore()
	assert.False(t, d.Seen("fp"))

	d.Record("fp")
	assert.True(t, d.Seen("fp"))
	assert.Equal(t, 1, d.Len())

	d.Record("fp")
	assert.Equal(t, 1, d.Len())
}

func TestDedupeStore_ClaimRelease(t *testing.T) {
	d := NewDedupeStore()

	require.True(t, d.Claim("a"))
	assert.False(t, d.Claim("a"), "in flight")
	d.Release("a")
	assert.False(t, d.Seen("a"), "release does not record")
	require.True(t, d.Claim("a"))
	d.Record("a")
	assert.False(t, d.Claim("a"), "already delivered")
}

func TestDedupeStore_ConcurrentClaim(t *testing.T) {
	d := NewDedupeStore()
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Claim("same") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
