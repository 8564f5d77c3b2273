package query

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/coolbeans/inelegis/pkg/record"
)

func sampleRecords() []*record.LegalRecord {
	return record.Build([]record.RawRow{
		{Norma: "Código Penal – Arts. 121 a 129", Excecoes: "Art. 129", Crime: "Crimes contra a pessoa"},
		{Norma: "Lei nº 9.504/1997 - Art. 299", Crime: "Corrupção eleitoral"},
		{Norma: "Código Penal – Arts. 155, 157 e 1210", Crime: "Crimes contra o patrimônio"},
		{Norma: "Art. 12", Crime: "Sem lei identificada"},
	})
}

func TestNewIndex(t *testing.T) {
	idx := NewIndex(append(sampleRecords(), nil))
	if idx.Len() != 4 {
		t.Errorf("Len = %d, want 4 (nil records skipped)", idx.Len())
	}
}

func TestIndexLaws(t *testing.T) {
	idx := NewIndex(sampleRecords())
	want := []record.LawSummary{
		{Codigo: "CP", Label: "Código Penal"},
		{Codigo: "LEI_9.504", Label: "Lei nº 9.504/1997"},
		{Codigo: record.UnknownLawCode, Label: record.UnknownLawCode},
	}
	if got := idx.Laws(); !reflect.DeepEqual(got, want) {
		t.Errorf("Laws = %+v, want %+v", got, want)
	}
}

func TestIndexRecordsForLaw(t *testing.T) {
	idx := NewIndex(sampleRecords())

	cp := idx.RecordsForLaw("CP")
	if len(cp) != 2 {
		t.Fatalf("RecordsForLaw(CP) = %d records, want 2", len(cp))
	}
	if cp[0].Crime != "Crimes contra a pessoa" || cp[1].Crime != "Crimes contra o patrimônio" {
		t.Errorf("records out of order: %q, %q", cp[0].Crime, cp[1].Crime)
	}

	if got := idx.RecordsForLaw("cp"); len(got) != 0 {
		t.Errorf("lookup should be case-sensitive, got %d records", len(got))
	}
	if got := idx.RecordsForLaw("LEI_1"); got == nil || len(got) != 0 {
		t.Errorf("RecordsForLaw(unknown) = %#v, want empty slice", got)
	}
}

func TestIndexSuggestions(t *testing.T) {
	idx := NewIndex(sampleRecords())

	tests := []struct {
		name   string
		codigo string
		prefix string
		want   []string
	}{
		{"empty prefix", "CP", "", []string{}},
		{"blank prefix", "CP", "  ", []string{}},
		{"prefix 12", "CP", "12", []string{"Art. 121", "Art. 129", "Art. 1210"}},
		{"prefix with marker", "CP", "Art. 15", []string{"Art. 155", "Art. 157"}},
		{"no match", "CP", "9", []string{}},
		{"other law", "LEI_9.504", "2", []string{"Art. 299"}},
		{"unknown law", "LEI_1", "1", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Suggestions(tt.codigo, tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggestions(%q, %q) = %v, want %v", tt.codigo, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestIndexSuggestions_CappedAndUnique(t *testing.T) {
	var parts []string
	for i := 100; i < 140; i++ {
		parts = append(parts, fmt.Sprintf("%d", i))
	}
	norma := "Código Penal - Arts. " + strings.Join(parts, ", ")
	rows := []record.RawRow{{Norma: norma}, {Norma: norma}}
	idx := NewIndex(record.Build(rows))

	got := idx.Suggestions("CP", "1")
	if len(got) != MaxSuggestions {
		t.Fatalf("got %d suggestions, want %d", len(got), MaxSuggestions)
	}
	seen := make(map[string]bool)
	for _, s := range got {
		if seen[s] {
			t.Errorf("duplicate suggestion %q", s)
		}
		seen[s] = true
	}
	if got[0] != "Art. 100" || got[19] != "Art. 119" {
		t.Errorf("suggestions not in encounter order: first %q last %q", got[0], got[19])
	}
}

func TestIndexQuery(t *testing.T) {
	idx := NewIndex(sampleRecords())

	tests := []struct {
		name   string
		filter record.Query
		want   int
	}{
		{"no filter", record.Query{}, 4},
		{"codigo only", record.Query{Codigo: "CP"}, 2},
		{"artigo only", record.Query{Artigo: "12"}, 1},
		{"codigo and artigo", record.Query{Codigo: "CP", Artigo: "121"}, 1},
		{"artigo not indexed as range interior", record.Query{Codigo: "CP", Artigo: "125"}, 0},
		{"artigo exact membership", record.Query{Codigo: "CP", Artigo: "Art. 121"}, 0},
		{"unknown codigo", record.Query{Codigo: "CPM"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Query(tt.filter)
			if got == nil {
				t.Fatal("Query returned nil")
			}
			if len(got) != tt.want {
				t.Errorf("Query(%+v) = %d records, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestIndexReturnsCopies(t *testing.T) {
	idx := NewIndex(sampleRecords())
	laws := idx.Laws()
	laws[0].Label = "changed"
	if idx.Laws()[0].Label == "changed" {
		t.Error("Laws exposes internal slice")
	}
	recs := idx.RecordsForLaw("CP")
	recs[0] = nil
	if idx.RecordsForLaw("CP")[0] == nil {
		t.Error("RecordsForLaw exposes internal slice")
	}
}
