package hash

import (
	"crypto/sha256"
	"fmt"
)

type Hash struct {
	data []byte
}

func NewHash(data []byte) Hash {
	return Hash{data: data}
}

func (h Hash) ComputeHash() string {
	sum := sha256.Sum256(h.data)
	return fmt.Sprintf("%x", sum)
}

// Fingerprint is the dedupe key of a post. The url joins the text only when present,
// so a text-only post and the same text with an empty url share a key.
func Fingerprint(text, url string) string {
	data := text
	if url != "" {
		data = text + "\n" + url
	}
	return NewHash([]byte(data)).ComputeHash()
}

func String(s string) string {
	return NewHash([]byte(s)).ComputeHash()
}
