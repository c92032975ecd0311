package hash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sergeygrin4/fb-job-parser-service/internal/utils/hash"
)

func TestFingerprint_Deterministic(t *testing.T) {
	cases := []struct {
		text string
		url  string
	}{
		{"We are hiring", "https://facebook.com/groups/1/posts/2"},
		{"Вакансия: Go developer", ""},
		{"", "https://facebook.com/groups/1/posts/3"},
	}

	for _, tc := range cases {
		first := hash.Fingerprint(tc.text, tc.url)
		second := hash.Fingerprint(tc.text, tc.url)
		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	}
}

func TestFingerprint_DistinguishesFields(t *testing.T) {
	a := hash.Fingerprint("job", "https://a")
	b := hash.Fingerprint("job", "https://b")
	c := hash.Fingerprint("job", "")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, hash.String("job"), c)
}
