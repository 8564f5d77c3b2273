package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliTable = `norma;excecoes;crime
Código Penal - Arts. 121 a 129;Art. 129;Crimes contra a pessoa
Lei 9.504/1997 - Art. 299;;Corrupção eleitoral
;Art. 1;sem norma
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tableFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabela.csv")
	require.NoError(t, os.WriteFile(path, []byte(cliTable), 0644))
	return path
}

func TestConsulta(t *testing.T) {
	path := tableFile(t)

	out, err := run(t, "consulta", "CP", "121", "--source", path)
	require.NoError(t, err)
	assert.Contains(t, out, "CP, Art. 121: INELEGIVEL")

	out, err = run(t, "consulta", "CP", "129", "--source", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ELEGIVEL (exception: Art. 129)")

	out, err = run(t, "consulta", "CP", "125", "--source", path, "-o", "json")
	require.NoError(t, err)
	var res resolve.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, resolve.StatusNotFound, res.Status)

	_, err = run(t, "consulta", "CP", "caput", "--source", path)
	assert.Error(t, err)
}

func TestLeisAndRegistros(t *testing.T) {
	path := tableFile(t)

	out, err := run(t, "leis", "--source", path)
	require.NoError(t, err)
	assert.Contains(t, out, "CP")
	assert.Contains(t, out, "LEI_9.504")
	assert.Contains(t, out, "2 lei(s)")

	out, err = run(t, "registros", "CP", "--source", path)
	require.NoError(t, err)
	assert.Contains(t, out, "121, 129")
	assert.Contains(t, out, "1 record(s)")
}

func TestSugestoes(t *testing.T) {
	out, err := run(t, "sugestoes", "CP", "12", "--source", tableFile(t), "-o", "json")
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"Art. 121", "Art. 129"}, got)
}

func TestArtigosNeedsNoSources(t *testing.T) {
	out, err := run(t, "artigos", "Arts. 121, 122 e 123")
	require.NoError(t, err)
	assert.Equal(t, "121\n122\n123\n", out)
}

func TestVerificar(t *testing.T) {
	path := tableFile(t)

	out, err := run(t, "verificar", "--source", path)
	assert.ErrorContains(t, err, "failed validation")
	assert.Contains(t, out, "Records: 2")
	assert.Contains(t, out, "Skipped: 1 missing, 0 corrupt")
	assert.Contains(t, out, "[FAIL] Gate V0")
	assert.Contains(t, out, "[PASS] Gate V3")

	out, err = run(t, "verificar", "--source", path, "--skip-gates", "V0")
	require.NoError(t, err)
	assert.Contains(t, out, "[SKIP] Gate V0")
	assert.Contains(t, out, "Status: PASS")

	out, err = run(t, "verificar", "--source", path, "--strict", "-o", "json")
	assert.Error(t, err)
	var result struct {
		Report struct {
			HaltedAt string `json:"halted_at"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "V0", result.Report.HaltedAt)
}

func TestNoSources(t *testing.T) {
	_, err := run(t, "leis")
	assert.ErrorContains(t, err, "no table sources")
}

func TestUnknownOutput(t *testing.T) {
	_, err := run(t, "artigos", "Art. 1", "-o", "xml")
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "config", "show", "--source", "a.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "- a.csv")
	assert.Contains(t, out, "8080")
}
