// assets/embed.go
//
// Embedded category word lists. Each file under categories/ holds one word
// or phrase per line; blank lines and "#" comments are skipped.

package assets

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed categories/*.txt
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out, sc.Err()
}

// CategoryWords returns the embedded word list for a category id.
func CategoryWords(id string) ([]string, error) {
	return readLines("categories/" + id + ".txt")
}
