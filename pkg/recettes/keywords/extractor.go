package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords are French function words and common size/freshness
// adjectives that carry no taste signal.
var DefaultStopwords = []string{
	"de", "du", "des", "le", "la", "les", "un", "une", "au", "aux",
	"et", "ou", "à", "en", "pour", "avec", "sans", "sur", "dans",
	"par", "très", "bien", "petit", "grand", "gros", "frais", "sec",
}

// DefaultUnits are measure words stripped from ingredient phrases.
var DefaultUnits = []string{
	"g", "kg", "ml", "cl", "l",
	"cuillère", "cuillères", "tasse", "tasses", "pincée", "pincées",
}

// minKeywordLen is the shortest keyword kept, in characters.
const minKeywordLen = 3

// Extractor turns free-text ingredient lists into keyword sets
type Extractor struct {
	stopwords map[string]struct{}
	units     map[string]struct{}
}

// NewExtractor creates an extractor with the given stopword and unit lists
func NewExtractor(stopwords, units []string) *Extractor {
	return &Extractor{
		stopwords: toLowerSet(stopwords),
		units:     toLowerSet(units),
	}
}

var defaultExtractor = Default()

// Default returns an extractor configured with DefaultStopwords and DefaultUnits
func Default() *Extractor {
	return NewExtractor(DefaultStopwords, DefaultUnits)
}

// Extract runs the default extractor over ingredients.
func Extract(ingredients string) Set {
	return defaultExtractor.Extract(ingredients)
}

// Extract splits ingredients on ';', ',' and newlines, drops quantities,
// units and stopwords, and returns the remaining words as a set.
// Empty input yields an empty set.
func (e *Extractor) Extract(ingredients string) Set {
	out := make(Set)
	if strings.TrimSpace(ingredients) == "" {
		return out
	}

	text := strings.ToLower(norm.NFC.String(ingredients))
	for _, phrase := range splitPhrases(text) {
		cleaned := e.stripUnits(stripDigits(phrase))
		for _, word := range strings.Fields(cleaned) {
			word = keepLetters(word)
			if e.keep(word) {
				out[word] = struct{}{}
			}
		}
	}
	return out
}

func (e *Extractor) keep(word string) bool {
	if len([]rune(word)) < minKeywordLen {
		return false
	}
	_, stop := e.stopwords[word]
	return !stop
}

// AddStopword adds a word to the stopword list
func (e *Extractor) AddStopword(word string) {
	e.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword removes a word from the stopword list
func (e *Extractor) RemoveStopword(word string) {
	delete(e.stopwords, strings.ToLower(word))
}

// IsStopword reports whether word is filtered as a stopword.
func (e *Extractor) IsStopword(word string) bool {
	_, ok := e.stopwords[strings.ToLower(word)]
	return ok
}

func splitPhrases(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})
	phrases := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, s)
}

// stripUnits removes unit words that stand alone between word boundaries.
// Letters (accented ones included), digits and '_' are word characters;
// everything else, apostrophes included, is a boundary.
func (e *Extractor) stripUnits(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := s[start:end]
		if _, unit := e.units[word]; !unit {
			b.WriteString(word)
		}
		start = -1
	}

	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
		b.WriteRune(r)
	}
	flush(len(s))

	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// keepLetters drops every rune outside the French lowercase alphabet.
func keepLetters(word string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || isFrenchAccent(r) {
			return r
		}
		return -1
	}, word)
}

func isFrenchAccent(r rune) bool {
	switch r {
	case 'à', 'â', 'ä', 'é', 'è', 'ê', 'ë', 'ï', 'î', 'ô', 'ù', 'û', 'ü', 'ç':
		return true
	}
	return false
}

func toLowerSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(norm.NFC.String(w))] = struct{}{}
	}
	return set
}
