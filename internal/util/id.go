package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewJoinCode produces a short, shout-across-the-booth friendly code for
// inviting operators into a show.
func NewJoinCode() string {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	var b strings.Builder
	for _, c := range bytes {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String()
}
