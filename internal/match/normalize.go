package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Honorific prefixes dropped from the front of a name.
var titles = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {}, "prof": {},
	"professor": {}, "sir": {}, "lady": {}, "lord": {}, "rev": {},
	"reverend": {}, "father": {}, "sister": {},
}

// Generational and professional suffixes dropped from the end of a name.
var suffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "v": {}, "vi": {},
	"esq": {}, "phd": {}, "md": {}, "dds": {}, "jd": {}, "cpa": {},
}

// Normalize lowercases a name, folds diacritics to ASCII, trims punctuation
// from token edges, and strips honorific prefixes and generational suffixes.
// Position matters: "v" is dropped as a suffix in "John Smith V" but kept as
// an initial in "V Smith". Idempotent; empty input normalizes to "".
func Normalize(raw string) string {
	folded := foldDiacritics(strings.ToLower(raw))

	fields := strings.Fields(folded)
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.TrimFunc(tok, unicode.IsPunct)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	for len(tokens) > 0 {
		if _, ok := titles[tokens[0]]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	for len(tokens) > 0 {
		if _, ok := suffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// Tokens returns the normalized name as word tokens, nil for empty input.
func Tokens(raw string) []string {
	n := Normalize(raw)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

func foldDiacritics(s string) string {
	// Chain transformers are stateful; build per call so concurrent
	// workers never share one.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
