package id

import (
	"crypto/rand"
	"strings"
)

// New returns a random job identifier such as "job_k3v7...". crypto/rand.Text
// never fails and yields 26 base32 characters.
func New() string {
	return "job_" + strings.ToLower(rand.Text())
}

// Valid reports whether s looks like an identifier produced by New.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, "job_")
	if !ok || len(rest) != 26 {
		return false
	}
	for _, r := range rest {
		if !(r >= 'a' && r <= 'z' || r >= '2' && r <= '7') {
			return false
		}
	}
	return true
}
