package record

import (
	"reflect"
	"testing"
)

func TestDeriveCode(t *testing.T) {
	tests := []struct {
		norma string
		want  string
	}{
		{"Código Penal - Arts. 121 a 129", CodePenal},
		{"CODIGO PENAL", CodePenal},
		{"Arts. 155 e 157 do CP", CodePenal},
		{"Decreto-Lei nº 2.848/1940, art. 121", CodePenal},
		{"Código Penal Militar - Art. 205", CodePenalMilitar},
		{"CPM, arts. 240 a 244", CodePenalMilitar},
		{"Decreto-Lei nº 1.001/1969", "LEI_1.001"},
		{"Lei 9504", "LEI_9504"},
		{"Lei nº 9.504/1997 - Art. 299", "LEI_9.504"},
		{"lei no 11343, art. 33", "LEI_11343"},
		{"Lei 0123", "LEI_0123"},
		{"Lei n. 8.137", "LEI_8.137"},
		{"Lei Complementar nº 64/1990", UnknownLawCode},
		{"LC 135", UnknownLawCode},
		{"Decreto-Lei nº 201/1967 - Art. 1º", "LEI_201"},
		{"Código de Processo Penal", UnknownLawCode},
		{"Constituição Federal", UnknownLawCode},
		{"", UnknownLawCode},
		{"   ", UnknownLawCode},
		{"Lei sem número", UnknownLawCode},
	}

	for _, tt := range tests {
		t.Run(tt.norma, func(t *testing.T) {
			if got := DeriveCode(tt.norma); got != tt.want {
				t.Errorf("DeriveCode(%q) = %q, want %q", tt.norma, got, tt.want)
			}
		})
	}
}

func TestSplitExceptions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"single", "Art. 121", []string{"Art. 121"}},
		{"comma", "Art. 121, Art. 122", []string{"Art. 121", "Art. 122"}},
		{"semicolon and e", "Art. 121; Art. 122 e Art. 123", []string{"Art. 121", "Art. 122", "Art. 123"}},
		{"upper case connective", "Art. 1 E Art. 2", []string{"Art. 1", "Art. 2"}},
		{"drops empty pieces", " , ;Art. 121;; ", []string{"Art. 121"}},
		{"e inside words kept", "crimes culposos e de menor potencial", []string{"crimes culposos", "de menor potencial"}},
		{"accented word ending in e", "Art. 121 põe", []string{"Art. 121 põe"}},
		{"e before comma", "Art. 121 e, Art. 122", []string{"Art. 121", "Art. 122"}},
		{"e after semicolon", "Art. 121;e Art. 122", []string{"Art. 121", "Art. 122"}},
		{"e at the end", "Art. 121 e", []string{"Art. 121"}},
		{"e inside accented word", "mãe e pai", []string{"mãe", "pai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitExceptions(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitExceptions(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestCleanLabel(t *testing.T) {
	tests := map[string]string{
		"Código Penal (Decreto-Lei nº 2.848/1940) – Arts. 121 a 129": "Código Penal (Decreto-Lei nº 2.848/1940)",
		"Lei nº 9.504/1997, art. 299":                                "Lei nº 9.504/1997",
		"Código Penal Militar":                                       "Código Penal Militar",
		"Art. 121":                                                   "",
		"Lei 7.716/1989 (Arts. 3 a 14)":                              "Lei 7.716/1989",
	}

	for norma, want := range tests {
		if got := CleanLabel(norma); got != want {
			t.Errorf("CleanLabel(%q) = %q, want %q", norma, got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	rows := []RawRow{
		{Norma: "Código Penal - Arts. 121, 121-A e 122", Excecoes: "Art. 122", Crime: " Crimes contra a vida "},
		{Norma: "Lei 9.504/1997 - Art. 299", Excecoes: "", Crime: "Crimes eleitorais"},
		{Norma: "Código Penal - Arts. 121, 121-A e 122", Excecoes: "", Crime: "Duplicado"},
	}

	records := Build(rows)
	if len(records) != len(rows) {
		t.Fatalf("Build returned %d records, want %d", len(records), len(rows))
	}

	first := records[0]
	if first.Codigo != CodePenal {
		t.Errorf("first.Codigo = %q", first.Codigo)
	}
	if !reflect.DeepEqual(first.Artigos, []string{"121", "122"}) {
		t.Errorf("first.Artigos = %v", first.Artigos)
	}
	if !reflect.DeepEqual(first.Excecoes, []string{"Art. 122"}) {
		t.Errorf("first.Excecoes = %v", first.Excecoes)
	}
	if first.Crime != "Crimes contra a vida" {
		t.Errorf("first.Crime = %q", first.Crime)
	}
	if first.Norma != rows[0].Norma {
		t.Errorf("first.Norma = %q", first.Norma)
	}

	if records[1].Codigo != "LEI_9.504" || !records[1].HasArticle("299") {
		t.Errorf("second record = %+v", records[1])
	}
	if len(records[1].Excecoes) != 0 || records[1].Excecoes == nil {
		t.Errorf("second.Excecoes = %#v, want empty slice", records[1].Excecoes)
	}

	// Duplicate citations stay distinct records.
	if records[0] == records[2] {
		t.Error("duplicate rows share a record")
	}
}

func TestBuildEmpty(t *testing.T) {
	records := Build(nil)
	if records == nil || len(records) != 0 {
		t.Errorf("Build(nil) = %#v, want empty slice", records)
	}
}
