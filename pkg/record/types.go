// Package record turns rows of the published ineligibility table into
// structured legal records.
package record

// UnknownLawCode is the code assigned to normas whose statute cannot be
// recognized.
const UnknownLawCode = "LEI_DESCONHECIDA"

// Well-known law codes.
const (
	CodePenal        = "CP"
	CodePenalMilitar = "CPM"
)

// RawRow is one row of the ineligibility table as published: the statute
// citation, the exceptions column and the offense description.
type RawRow struct {
	Norma    string `json:"norma" yaml:"norma" db:"norma"`
	Excecoes string `json:"excecoes" yaml:"excecoes" db:"excecoes"`
	Crime    string `json:"crime" yaml:"crime" db:"crime"`
}

// LegalRecord is the structured form of a RawRow. Records are created once
// by Build and never modified afterwards.
type LegalRecord struct {
	Codigo   string   `json:"codigo"`
	Norma    string   `json:"norma"`
	Excecoes []string `json:"excecoes"`
	Crime    string   `json:"crime"`
	Artigos  []string `json:"artigos"`
}

// HasArticle reports whether the record cites the given canonical article.
func (r *LegalRecord) HasArticle(artigo string) bool {
	for _, a := range r.Artigos {
		if a == artigo {
			return true
		}
	}
	return false
}

// LawSummary identifies one distinct law in the table.
type LawSummary struct {
	Codigo string `json:"codigo"`
	Label  string `json:"label"`
}

// Query selects records by law code and article number. Empty fields do
// not filter.
type Query struct {
	Codigo string `json:"codigo,omitempty"`
	Artigo string `json:"artigo,omitempty"`
}

// Verdict is the answer for a matched record. Motivo names the exception
// that lifted the ineligibility and is empty otherwise.
type Verdict struct {
	Inelegivel bool         `json:"inelegivel"`
	Record     *LegalRecord `json:"record"`
	Motivo     string       `json:"motivo,omitempty"`
}
