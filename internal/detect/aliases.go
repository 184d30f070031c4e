// internal/detect/aliases.go
//
// Fixed alias table for transcript matching.
//
// Notes:
//   • Keys are canonical lowercase card words; values are alternate surface
//     forms that count as saying the word. The mapping is one-directional.
//   • The table is read-only; Aliases hands out copies.

package detect

var aliases = map[string][]string{
	"ci/cd":    {"ci cd", "cicd", "continuous integration continuous delivery"},
	"mvp":      {"minimum viable product", "m.v.p.", "minimum viable"},
	"roi":      {"return on investment", "r.o.i.", "return on"},
	"api":      {"a.p.i.", "application programming interface"},
	"devops":   {"dev ops", "dev-ops", "development operations"},
	"sla":      {"s.l.a.", "service level agreement"},
	"kpi":      {"k.p.i.", "key performance indicator"},
	"okr":      {"o.k.r.", "objectives and key results"},
	"a/b test": {"ab test", "a b test", "split test"},
}

// Aliases returns the alternate forms of a lowercase card word, or nil.
func Aliases(word string) []string {
	forms, ok := aliases[word]
	if !ok {
		return nil
	}
	return append([]string(nil), forms...)
}
