package service

import "strings"

const maxSignificantWords = 4

var stopWords = map[string]struct{}{
	"is": {}, "not": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

// significantWords returns up to four title words that are not stop words,
// in title order.
func significantWords(title string) []string {
	var out []string
	for _, w := range strings.Fields(title) {
		if _, stop := stopWords[strings.ToLower(w)]; stop {
			continue
		}
		out = append(out, w)
		if len(out) == maxSignificantWords {
			break
		}
	}
	return out
}
