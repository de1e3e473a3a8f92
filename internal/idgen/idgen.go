// Package idgen generates random identifiers for requests and payment orders.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Hex returns n random bytes from crypto/rand encoded as 2n hex characters.
func Hex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// The kernel CSPRNG never fails on supported platforms; an error
		// here means the process cannot safely mint identifiers at all.
		panic("idgen: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
