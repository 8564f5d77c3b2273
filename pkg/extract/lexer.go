package extract

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokNumber    tokenKind = iota // digit run, thousands groups joined
	tokSuffix                     // "-a" after a number
	tokHyphen                     // plain "-"
	tokDash                       // en or em dash
	tokSection                    // "§" or "§§"
	tokComma                      // ","
	tokSemicolon                  // ";"
	tokWord                       // letter run
)

type token struct {
	kind   tokenKind
	text   string
	plural bool
}

// lex splits lower-cased, accent-folded citation text into tokens.
// Whitespace, periods, parentheses, slashes and ordinal indicators are
// dropped.
func lex(s string) []token {
	runes := []rune(s)
	var tokens []token

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isDigit(r):
			number, next := scanNumber(runes, i)
			tokens = append(tokens, token{kind: tokNumber, text: number})
			i = next

		case r == '-':
			if i+1 < len(runes) && unicode.IsLetter(runes[i+1]) &&
				(i+2 >= len(runes) || !unicode.IsLetter(runes[i+2])) {
				tokens = append(tokens, token{kind: tokSuffix, text: string(runes[i+1])})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokHyphen, text: "-"})
			i++

		case r == '–' || r == '—':
			tokens = append(tokens, token{kind: tokDash, text: string(r)})
			i++

		case r == '§':
			j := i
			for j < len(runes) && runes[j] == '§' {
				j++
			}
			tokens = append(tokens, token{kind: tokSection, text: string(runes[i:j]), plural: j-i > 1})
			i = j

		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++

		case r == ';':
			tokens = append(tokens, token{kind: tokSemicolon, text: ";"})
			i++

		case isOrdinalIndicator(r):
			i++

		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[i:j])})
			i = j

		default:
			i++
		}
	}

	return tokens
}

// scanNumber reads a digit run starting at i. When the run has at most three
// digits, groups of exactly three digits after a period ("1.228") belong to
// the same number. The result has no separators and no leading zeros.
func scanNumber(runes []rune, i int) (string, int) {
	var b strings.Builder
	j := i
	for j < len(runes) && isDigit(runes[j]) {
		b.WriteRune(runes[j])
		j++
	}
	grouped := j-i <= 3
	for grouped && j+3 < len(runes) && runes[j] == '.' && isDigit(runes[j+1]) && isDigit(runes[j+2]) && isDigit(runes[j+3]) &&
		(j+4 >= len(runes) || !isDigit(runes[j+4])) {
		b.WriteString(string(runes[j+1 : j+4]))
		j += 4
	}
	return trimLeadingZeros(b.String()), j
}

func trimLeadingZeros(number string) string {
	trimmed := strings.TrimLeft(number, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// isOrdinalIndicator reports "º", "ª" and "°", which are letters to the
// unicode package but only mark ordinals ("§ 2º").
func isOrdinalIndicator(r rune) bool {
	return r == 'º' || r == 'ª' || r == '°'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
