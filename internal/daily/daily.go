// apps/go-server/internal/daily/daily.go
//
// Daily featured item.

// Package daily picks a deterministic featured item per day.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ItemIndex returns a deterministic index for a date and scope using
// HMAC(salt, scope|YYYY-MM-DD) % n. Scope keeps the tank and map picks apart.
func ItemIndex(date time.Time, salt, scope string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(scope + "|" + DateKey(date)))
	sum := h.Sum(nil)
	// take first 8 bytes to uint64 for modulus distribution
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}
