// internal/detect/detect.go
//
// Transcript word matching.
//
// Responsibilities:
//   - Normalize transcript and card words (lowercase, straight quotes, trimmed).
//   - Match phrases by substring and single words on whole-word boundaries.
//   - Extend matching with a fixed alias table (abbreviations, dotted spellings).
//
// Notes:
//   • Results keep the casing stored on the card and follow card-word order.
//   • Words already filled (lowercased keys of alreadyFilled) are never returned.
//   • Candidates are escaped with regexp.QuoteMeta before compilation, so any
//     text is safe to match against.

package detect

import (
	"regexp"
	"strings"
	"sync"
)

// quoteReplacer folds curly quotes to their ASCII forms.
var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
)

// Normalize lowercases s, straightens quotes and trims surrounding space.
func Normalize(s string) string {
	return strings.TrimSpace(quoteReplacer.Replace(strings.ToLower(s)))
}

// patterns caches compiled whole-word patterns keyed by normalized word.
var patterns sync.Map

func wordPattern(word string) *regexp.Regexp {
	if re, ok := patterns.Load(word); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	patterns.Store(word, re)
	return re
}

// Words returns the card words found in transcript.
func Words(transcript string, cardWords []string, alreadyFilled map[string]struct{}) []string {
	text := Normalize(transcript)
	detected := []string{}
	for _, word := range cardWords {
		if _, filled := alreadyFilled[strings.ToLower(word)]; filled {
			continue
		}
		if containsWord(text, Normalize(word)) {
			detected = append(detected, word)
		}
	}
	return detected
}

// containsWord reports whether the normalized word occurs in the normalized
// text: phrases by substring, single words as a whole token.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	if strings.Contains(word, " ") {
		return strings.Contains(text, word)
	}
	return wordPattern(word).MatchString(text)
}

// WordsWithAliases runs Words, then checks the alias table for every card
// word that is still neither filled nor detected.
func WordsWithAliases(transcript string, cardWords []string, alreadyFilled map[string]struct{}) []string {
	detected := Words(transcript, cardWords, alreadyFilled)
	seen := make(map[string]struct{}, len(detected))
	for _, w := range detected {
		seen[strings.ToLower(w)] = struct{}{}
	}

	text := Normalize(transcript)
	for _, word := range cardWords {
		key := strings.ToLower(word)
		if _, filled := alreadyFilled[key]; filled {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		for _, alias := range aliases[key] {
			if strings.Contains(text, strings.ToLower(alias)) {
				detected = append(detected, word)
				seen[key] = struct{}{}
				break
			}
		}
	}
	return detected
}
