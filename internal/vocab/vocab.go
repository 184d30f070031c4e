// internal/vocab/vocab.go
//
// Vocabulary store for the bingo engine.
//
// Responsibilities:
//   - Hold the fixed set of word categories (agile, corporate, tech).
//   - Load each category's words once from the embedded assets.
//   - Serve read-only lookups by category id.
//
// Constraints:
//   • Every category has at least MinWords words.
//   • Words are lowercase and unique within a category.
//   • The table is never mutated after Init; lookups hand out copies.

package vocab

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robalobadob/meeting-bingo/assets"
)

// CategoryID names one of the fixed categories.
type CategoryID string

const (
	Agile     CategoryID = "agile"
	Corporate CategoryID = "corporate"
	Tech      CategoryID = "tech"
)

// MinWords is the smallest word list a category may ship with.
const MinWords = 45

// ErrNotFound is returned by Lookup for ids outside the fixed set.
var ErrNotFound = errors.New("vocab: category not found")

// Category is a named word list.
type Category struct {
	ID          CategoryID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Words       []string   `json:"words"`
}

// catalog lists category metadata in display order. Words are filled by Init.
var catalog = []Category{
	{ID: Agile, Name: "Agile & Scrum", Description: "Sprint planning, standups, and retros", Icon: "🏃"},
	{ID: Corporate, Name: "Corporate Speak", Description: "Synergy, alignment, and circling back", Icon: "💼"},
	{ID: Tech, Name: "Tech & Engineering", Description: "APIs, deployments, and the cloud", Icon: "💻"},
}

var (
	initOnce   sync.Once
	categories map[CategoryID]Category
	initialErr error
)

// Init loads every category exactly once.
// Returns an error if any list is missing, too short, or contains duplicates.
func Init() error {
	initOnce.Do(func() {
		loaded := make(map[CategoryID]Category, len(catalog))
		for _, meta := range catalog {
			words, err := assets.CategoryWords(string(meta.ID))
			if err != nil {
				initialErr = fmt.Errorf("vocab: load %s: %w", meta.ID, err)
				return
			}
			if err := validate(meta.ID, words); err != nil {
				initialErr = err
				return
			}
			c := meta
			c.Words = words
			loaded[meta.ID] = c
		}
		categories = loaded
	})
	return initialErr
}

// validate enforces the size, casing and uniqueness rules for one list.
func validate(id CategoryID, words []string) error {
	if len(words) < MinWords {
		return fmt.Errorf("vocab: category %s has %d words, need at least %d", id, len(words), MinWords)
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w != strings.ToLower(w) {
			return fmt.Errorf("vocab: category %s: word %q is not lowercase", id, w)
		}
		if _, dup := seen[w]; dup {
			return fmt.Errorf("vocab: category %s: duplicate word %q", id, w)
		}
		seen[w] = struct{}{}
	}
	return nil
}

// Lookup returns the category for id. The returned word slice is a copy.
func Lookup(id CategoryID) (Category, error) {
	if err := Init(); err != nil {
		return Category{}, err
	}
	c, ok := categories[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c.Words = append([]string(nil), c.Words...)
	return c, nil
}

// All returns every category in display order.
func All() ([]Category, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(catalog))
	for _, meta := range catalog {
		c := categories[meta.ID]
		c.Words = append([]string(nil), c.Words...)
		out = append(out, c)
	}
	return out, nil
}
