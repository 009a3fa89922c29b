// Package token generates the opaque ownership credentials attached to
// records. Tokens are drawn from crypto/rand only; there is no fallback to a
// weaker source.
package token

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Length is the size of a generated ownership token.
const Length = 32

// Generate returns a token of n characters, each drawn independently and
// uniformly from the 62-symbol alphanumeric alphabet. Rejection sampling
// keeps the draw unbiased (248 is the largest multiple of 62 below 256).
// Failure of the system random source is unrecoverable and panics.
func Generate(n int) string {
	const max = 248
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("token: crypto/rand unavailable: %v", err))
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// New returns a token of the default Length.
func New() string {
	return Generate(Length)
}
