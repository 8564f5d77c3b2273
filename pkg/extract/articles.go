// Package extract parses Brazilian statute citations ("normas") into the
// article numbers they reference.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/coolbeans/inelegis/pkg/normalize"
)

// articleMarkerPattern matches "art", "arts", "art." and "arts." as whole words.
var articleMarkerPattern = regexp.MustCompile(`\barts?\b\.?`)

// lawReferenceWords end article collection inside a segment: the numbers
// after them identify a statute or a year, not an article.
var lawReferenceWords = map[string]bool{
	"lei":          true,
	"leis":         true,
	"decreto":      true,
	"dl":           true,
	"lc":           true,
	"codigo":       true,
	"cp":           true,
	"cpm":          true,
	"cpp":          true,
	"cf":           true,
	"clt":          true,
	"constituicao": true,
	"estatuto":     true,
	"n":            true,
}

// subdivisionWords introduce paragraph, inciso or alinea numbers. The value
// reports whether the marker is plural.
var subdivisionWords = map[string]bool{
	"paragrafo":  false,
	"par":        false,
	"inciso":     false,
	"inc":        false,
	"alinea":     false,
	"item":       false,
	"paragrafos": true,
	"incisos":    true,
	"alineas":    true,
	"itens":      true,
}

// romanPattern matches inciso numerals and single alinea letters, which
// never interrupt a paragraph or inciso list.
var romanPattern = regexp.MustCompile(`^(?:[ivxlc]+|[a-z])$`)

var connectiveWords = map[string]bool{
	"e":   true,
	"a":   true,
	"ou":  true,
	"ate": true,
}

// subdivisionMode tracks whether numbers currently belong to a paragraph or
// inciso rather than to an article.
type subdivisionMode int

const (
	modeArticle subdivisionMode = iota
	modeSingular
	modePlural
)

// ExtractArticles returns the article numbers cited in a norma, in
// first-seen order and without duplicates. Letter suffixes ("121-A") are
// discarded. Hyphen ranges ("120-122") and the connective "a" ("120 a 122")
// yield both endpoints; en/em dash ranges ("120–122") yield only the first.
// Text without an article marker yields an empty slice.
func ExtractArticles(citation string) []string {
	articles := []string{}
	if strings.TrimSpace(citation) == "" {
		return articles
	}

	text := normalize.Fold(strings.ToLower(citation))
	markers := articleMarkerPattern.FindAllStringIndex(text, -1)
	if len(markers) == 0 {
		return articles
	}

	seen := make(map[string]bool)
	for i, marker := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		for _, number := range segmentArticles(text[marker[1]:end]) {
			if seen[number] {
				continue
			}
			seen[number] = true
			articles = append(articles, number)
		}
	}

	return articles
}

// segmentArticles walks the tokens of a single marker segment.
func segmentArticles(segment string) []string {
	tokens := lex(segment)
	var numbers []string
	mode := modeArticle

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokNumber:
			if mode == modeArticle {
				numbers = append(numbers, tok.text)
			}
			// An en/em dash range keeps only its first endpoint.
			if next := nextSignificant(tokens, i); next >= 0 && tokens[next].kind == tokDash {
				if after := nextSignificant(tokens, next); after >= 0 && tokens[after].kind == tokNumber {
					i = after
				}
			}

		case tokSection:
			if tok.plural {
				mode = modePlural
			} else {
				mode = modeSingular
			}

		case tokComma:
			if mode == modeSingular {
				mode = modeArticle
			}

		case tokSemicolon:
			mode = modeArticle

		case tokWord:
			if lawReferenceWords[tok.text] {
				return numbers
			}
			if plural, ok := subdivisionWords[tok.text]; ok {
				if plural {
					mode = modePlural
				} else {
					mode = modeSingular
				}
				continue
			}
			if !connectiveWords[tok.text] && !romanPattern.MatchString(tok.text) {
				mode = modeArticle
			}
		}
	}

	return numbers
}

// nextSignificant returns the index of the token after i, skipping letter
// suffixes, or -1.
func nextSignificant(tokens []token, i int) int {
	for j := i + 1; j < len(tokens); j++ {
		if tokens[j].kind != tokSuffix {
			return j
		}
	}
	return -1
}

// CanonicalArticle reduces a user supplied article reference ("121",
// "Art. 121", "121-A", "art. 1.228") to its digit-only form.
func CanonicalArticle(ref string) (string, bool) {
	if strings.TrimSpace(ref) == "" {
		return "", false
	}
	text := normalize.Fold(strings.ToLower(ref))
	if articleMarkerPattern.MatchString(text) {
		if articles := ExtractArticles(ref); len(articles) > 0 {
			return articles[0], true
		}
		return "", false
	}
	for _, tok := range lex(text) {
		if tok.kind == tokNumber {
			return tok.text, true
		}
	}
	return "", false
}

// FormatArticle renders an article number the way the published tables do.
func FormatArticle(number string) string {
	return "Art. " + number
}

// HasArticleMarker reports whether text contains an article marker.
func HasArticleMarker(text string) bool {
	return articleMarkerPattern.MatchString(normalize.Fold(strings.ToLower(text)))
}

// StripArticleMarker removes a leading article marker, as typed in search
// boxes ("Art. 12" becomes "12").
func StripArticleMarker(text string) string {
	text = strings.TrimSpace(normalize.Fold(strings.ToLower(text)))
	if loc := articleMarkerPattern.FindStringIndex(text); loc != nil && loc[0] == 0 {
		text = text[loc[1]:]
	}
	return strings.TrimSpace(text)
}

// MarkerIndex returns the byte offset in text of the first article marker,
// or -1.
func MarkerIndex(text string) int {
	var lowered strings.Builder
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		start := lowered.Len()
		lowered.WriteRune(unicode.ToLower(r))
		for k := start; k < lowered.Len(); k++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(text))

	loc := articleMarkerPattern.FindStringIndex(lowered.String())
	if loc == nil {
		return -1
	}
	return offsets[loc[0]]
}
