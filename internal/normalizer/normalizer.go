// Package normalizer expands person and title search terms into the spellings
// the catalog may have indexed them under.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Variant pairs an unaccented given-name spelling with its accented form.
// Both sides are lower case.
type Variant struct {
	Plain    string
	Accented string
}

// VariantTable lists common Portuguese given names whose accent is often dropped
var VariantTable = []Variant{
	{"jose", "josé"},
	{"joao", "joão"},
	{"antonio", "antônio"},
	{"sebastiao", "sebastião"},
	{"fabio", "fábio"},
	{"marcio", "márcio"},
	{"flavio", "flávio"},
	{"claudio", "cláudio"},
	{"simao", "simão"},
	{"helio", "hélio"},
	{"vinicius", "vinícius"},
	{"lucia", "lúcia"},
	{"monica", "mônica"},
	{"angela", "ângela"},
	{"patricia", "patrícia"},
	{"cecilia", "cecília"},
	{"leticia", "letícia"},
	{"andre", "andré"},
	{"rogerio", "rogério"},
	{"sergio", "sérgio"},
	{"julio", "júlio"},
	{"caua", "cauã"},
	{"estevao", "estêvão"},
	{"tania", "tânia"},
	{"debora", "débora"},
	{"barbara", "bárbara"},
	{"katia", "kátia"},
}

// Expander produces search variants from a fixed table
type Expander struct {
	variants []Variant
}

// NewExpander builds an Expander. Entries whose sides are equal are ignored.
func NewExpander(table []Variant) *Expander {
	variants := make([]Variant, 0, len(table))
	for _, v := range table {
		plain := strings.ToLower(strings.TrimSpace(v.Plain))
		accented := strings.ToLower(strings.TrimSpace(v.Accented))
		if plain == "" || accented == "" || plain == accented {
			continue
		}
		variants = append(variants, Variant{Plain: plain, Accented: accented})
	}
	return &Expander{variants: variants}
}

var defaultExpander = NewExpander(VariantTable)

// Expand uses the built-in VariantTable
func Expand(term string) []string {
	return defaultExpander.Expand(term)
}

// Expand returns the trimmed term followed by its diacritic-free form and the
// lower-case and title-case spellings obtained by swapping any whole word found
// in the table. Order is deterministic and duplicates are removed. A blank term
// yields no forms.
func (e *Expander) Expand(term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return []string{}
	}

	forms := newOrderedSet()
	forms.add(term)
	forms.add(StripDiacritics(term))

	words := strings.Fields(strings.ToLower(term))
	title := cases.Title(language.BrazilianPortuguese)

	for _, v := range e.variants {
		for _, swap := range [][2]string{{v.Plain, v.Accented}, {v.Accented, v.Plain}} {
			replaced, ok := replaceWord(words, swap[0], swap[1])
			if !ok {
				continue
			}
			forms.add(replaced)
			forms.add(title.String(replaced))
		}
	}

	return forms.items
}

func replaceWord(words []string, from, to string) (string, bool) {
	found := false
	out := make([]string, len(words))
	for i, w := range words {
		if w == from {
			out[i] = to
			found = true
			continue
		}
		out[i] = w
	}
	if !found {
		return "", false
	}
	return strings.Join(out, " "), true
}

// StripDiacritics removes combining marks after canonical decomposition.
// Applying it twice yields the same result as applying it once.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize folds s for comparisons: lower case, no diacritics, no
// punctuation, single spaces
func Normalize(s string) string {
	s = StripDiacritics(strings.ToLower(s))

	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// ContainsName reports whether haystack mentions name, comparing normalised
// forms. Matching the first token of name is enough ("jose" matches
// "José Padilha").
func ContainsName(haystack, name string) bool {
	h := Normalize(haystack)
	n := Normalize(name)
	if h == "" || n == "" {
		return false
	}
	if strings.Contains(h, n) {
		return true
	}
	first := strings.Fields(n)[0]
	return strings.Contains(h, first)
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
