package record

import (
	"regexp"
	"strings"

	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/normalize"
)

// Law code patterns, matched against normalized text. The military code is
// checked first because its name contains "codigo penal".
var (
	militaryCodePattern = regexp.MustCompile(`codigo penal militar|\bcpm\b`)
	penalCodePattern    = regexp.MustCompile(`codigo penal|\bcp\b|decreto-lei\s*(?:n[º°o.]*\s*)?2\.?848\b`)
	lawPattern          = regexp.MustCompile(`\blei\s*(?:n[º°o.]*\s*)?(\d(?:[\d.]*\d)?)`)
)

// exceptionSeparator splits the exceptions column on commas, semicolons and
// the standalone connective "e". The connective may touch punctuation
// ("121 e, 122") but not a letter, so "põe" or "mãe" stay whole.
var exceptionSeparator = regexp.MustCompile(`(?i)(?:^|[\s,;])e(?:$|[\s,;.])|[,;]`)

// labelTrailer is trimmed from the end of a display label.
const labelTrailer = " \t\r\n-–—,;:.(["

// DeriveCode maps a norma to its canonical law code. It never fails:
// unrecognized text maps to UnknownLawCode. Law numbers are kept as written
// ("Lei nº 9.504/1997" is LEI_9.504); the year is not part of the code.
func DeriveCode(norma string) string {
	text := normalize.Normalize(norma)
	if text == "" {
		return UnknownLawCode
	}

	switch {
	case militaryCodePattern.MatchString(text):
		return CodePenalMilitar
	case penalCodePattern.MatchString(text):
		return CodePenal
	}

	if m := lawPattern.FindStringSubmatch(text); m != nil {
		return "LEI_" + m[1]
	}

	return UnknownLawCode
}

// SplitExceptions splits the exceptions column into trimmed, non-empty
// phrases in their original order.
func SplitExceptions(text string) []string {
	phrases := []string{}
	for _, piece := range exceptionSeparator.Split(text, -1) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			phrases = append(phrases, piece)
		}
	}
	return phrases
}

// CleanLabel returns the display name of the law cited by norma: the text
// before the first article marker, without trailing punctuation.
func CleanLabel(norma string) string {
	label := norma
	if idx := extract.MarkerIndex(norma); idx >= 0 {
		label = norma[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(label), labelTrailer)
}

// BuildRecord converts a single row.
func BuildRecord(row RawRow) *LegalRecord {
	return &LegalRecord{
		Codigo:   DeriveCode(row.Norma),
		Norma:    row.Norma,
		Excecoes: SplitExceptions(row.Excecoes),
		Crime:    strings.TrimSpace(row.Crime),
		Artigos:  extract.ExtractArticles(row.Norma),
	}
}

// Build converts rows into records, one per row, in input order. Rows that
// cite the same law are kept as distinct records.
func Build(rows []RawRow) []*LegalRecord {
	records := make([]*LegalRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, BuildRecord(row))
	}
	return records
}
