// Package daily derives the shared "card of the day": every player who asks
// for a daily card in a category on the same UTC date gets the same layout.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns a deterministic PCG seed from HMAC(salt, "YYYY-MM-DD|category").
func Seed(date, salt string, categoryID vocab.CategoryID) (uint64, uint64) {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(date + "|" + string(categoryID)))
	sum := h.Sum(nil)
	// first 16 bytes as two uint64 halves
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Generator returns a card generator whose shuffle is seeded for the given
// date and category. Each call starts a fresh sequence, so regenerating with
// a new generator reproduces the same card.
func Generator(date, salt string, categoryID vocab.CategoryID) *card.Generator {
	s1, s2 := Seed(date, salt, categoryID)
	rng := rand.New(rand.NewPCG(s1, s2))
	return &card.Generator{Intn: rng.IntN, Now: time.Now}
}
