// internal/card/generator.go
//
// Card generation: shuffle a category's vocabulary and lay 24 words out
// row-major around the free space at (2,2).
//
// Notes:
//   - The shuffle is a backward Fisher–Yates pass over a copy of the list,
//     so the vocabulary is never mutated.
//   - The default index source is crypto/rand; daily cards plug in a seeded one.
//   - Duplicate words are rejected instead of being placed twice.

package card

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

var (
	ErrUnknownCategory = errors.New("card: unknown category")
	ErrTooFewWords     = errors.New("card: not enough words")
	ErrDuplicateWord   = errors.New("card: duplicate word")
)

// Generator builds cards. Intn must return a uniform integer in [0,n).
type Generator struct {
	Intn func(n int) int
	Now  func() time.Time
}

// NewGenerator returns a generator backed by crypto/rand and the wall clock.
func NewGenerator() *Generator {
	return &Generator{Intn: cryptoIntn, Now: time.Now}
}

var defaultGenerator = NewGenerator()

// Generate builds a fresh card for categoryID with the default generator.
func Generate(categoryID vocab.CategoryID) (Card, error) {
	return defaultGenerator.Generate(categoryID)
}

// Generate builds a fresh card for categoryID.
// Returns ErrUnknownCategory if the id is not in the vocabulary store.
func (g *Generator) Generate(categoryID vocab.CategoryID) (Card, error) {
	cat, err := vocab.Lookup(categoryID)
	if err != nil {
		if errors.Is(err, vocab.ErrNotFound) {
			return Card{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
		}
		return Card{}, err
	}
	return g.FromWords(cat.Words)
}

// FromWords shuffles words (without mutating them) and builds a card from
// the first 24.
func (g *Generator) FromWords(words []string) (Card, error) {
	if len(words) < WordCount {
		return Card{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewWords, len(words), WordCount)
	}
	pool := Shuffle(words, g.Intn)[:WordCount]

	seen := make(map[string]struct{}, WordCount)
	for _, w := range pool {
		k := strings.ToLower(w)
		if _, dup := seen[k]; dup {
			return Card{}, fmt.Errorf("%w: %q", ErrDuplicateWord, w)
		}
		seen[k] = struct{}{}
	}

	now := g.Now()
	var c Card
	next := 0
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			sq := Square{ID: SquareID(row, col), Row: row, Col: col}
			if row == FreeRow && col == FreeCol {
				filledAt := now
				sq.Word = FreeWord
				sq.IsFilled = true
				sq.IsFreeSpace = true
				sq.FilledAt = &filledAt
			} else {
				sq.Word = pool[next]
				next++
			}
			c.Squares[row][col] = sq
		}
	}
	c.Words = pool
	return c, nil
}

// Shuffle returns a shuffled copy of words using a backward Fisher–Yates
// pass: for i from len-1 down to 1, swap i with a uniform j in [0,i].
func Shuffle(words []string, intn func(n int) int) []string {
	out := append([]string(nil), words...)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// cryptoIntn returns a cryptographically random int in [0,n).
func cryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("card: crypto/rand failed: %v", err))
	}
	return int(v.Int64())
}
