package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coolbeans/inelegis/pkg/record"
	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/coolbeans/inelegis/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstTable = `norma,excecoes,crime
Código Penal - Arts. 121 a 129,Art. 121 caput,Crimes contra a vida
Lei 9.504/1997 - Art. 299,,Corrupção eleitoral
`

const secondTable = `norma,excecoes,crime
Código Penal - Arts. 121 a 129,Art. 121 caput,Crimes contra a vida
Lei 9.504/1997 - Art. 299,,Corrupção eleitoral
CPM - Art. 205,,Homicídio militar
,Art. 1,sem norma
`

func TestNew(t *testing.T) {
	s := New([]record.RawRow{
		{Norma: "Código Penal - Art. 121", Excecoes: "Art. 121 caput", Crime: "Homicídio"},
		{Norma: "CPM - Art. 205", Crime: "Homicídio militar"},
	})

	assert.Len(t, s.Records, 2)
	assert.Equal(t, 2, s.Index.Len())
	assert.Zero(t, s.Generation)
	assert.False(t, s.BuiltAt.IsZero())

	res := s.Resolver.Resolve("CPM", "205")
	assert.Equal(t, resolve.StatusIndexed, res.Status)
	require.NotNil(t, res.Verdict)
	assert.True(t, res.Verdict.Inelegivel)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2, stats.Laws)
}

func TestNew_Empty(t *testing.T) {
	s := New(nil)
	assert.Empty(t, s.Records)
	assert.Equal(t, resolve.StatusNotFound, s.Resolver.Resolve("CP", "121").Status)
}

func TestHolder_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabela.csv")
	require.NoError(t, os.WriteFile(path, []byte(firstTable), 0644))

	h := NewHolder(table.NewLoader(table.Options{}, nil), []string{path}, nil)
	assert.Nil(t, h.Current())

	first, err := h.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Generation)
	assert.Len(t, first.Records, 2)
	assert.Same(t, first, h.Current())

	require.NoError(t, os.WriteFile(path, []byte(secondTable), 0644))
	second, err := h.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Len(t, second.Records, 3)
	assert.Len(t, second.Issues, 1)
	assert.Equal(t, 1, second.Stats().Issues[table.IssueMissing])

	// The previous snapshot is untouched by the rebuild.
	assert.Len(t, first.Records, 2)
	assert.Equal(t, resolve.StatusNotFound, first.Resolver.Resolve("CPM", "205").Status)
	assert.Equal(t, resolve.StatusIndexed, second.Resolver.Resolve("CPM", "205").Status)
}

func TestHolder_ReloadFailureKeepsSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabela.csv")
	require.NoError(t, os.WriteFile(path, []byte(firstTable), 0644))

	h := NewHolder(table.NewLoader(table.Options{}, nil), []string{path}, nil)
	first, err := h.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = h.Reload(context.Background())
	require.Error(t, err)
	assert.Same(t, first, h.Current())
}

func TestHolder_NoLoader(t *testing.T) {
	h := NewHolder(nil, nil, nil)
	_, err := h.Reload(context.Background())
	assert.Error(t, err)

	s := h.Store([]record.RawRow{{Norma: "CPM - Art. 205"}})
	assert.Equal(t, uint64(1), s.Generation)
	assert.Same(t, s, h.Current())
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	h := NewHolder(nil, nil, nil)
	h.Store([]record.RawRow{{Norma: "Código Penal - Art. 121"}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := h.Current()
				res := s.Resolver.Resolve("CP", "121")
				assert.True(t, res.Found())
			}
		}()
	}
	for i := 0; i < 20; i++ {
		h.Store([]record.RawRow{{Norma: "Código Penal - Art. 121"}})
	}
	wg.Wait()
	assert.Equal(t, uint64(21), h.Current().Generation)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabela.csv")
	require.NoError(t, os.WriteFile(path, []byte(firstTable), 0644))

	h := NewHolder(table.NewLoader(table.Options{}, nil), []string{filepath.Join(dir, "*.csv")}, nil)
	_, err := h.Reload(context.Background())
	require.NoError(t, err)

	reloaded := make(chan *Session, 4)
	w := NewWatcher(h, 20*time.Millisecond, nil)
	w.OnReload = func(s *Session) {
		select {
		case reloaded <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register its directories.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(secondTable), 0644)
		select {
		case s := <-reloaded:
			return len(s.Records) == 3
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(h.Current().Records) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_Directories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024", "eleitoral"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	h := NewHolder(nil, []string{
		filepath.Join(dir, "**", "*.csv"),
		filepath.Join(dir, "extra", "tabela.json"),
	}, nil)
	w := NewWatcher(h, 0, nil)

	assert.ElementsMatch(t, []string{
		dir,
		filepath.Join(dir, "2024"),
		filepath.Join(dir, "2024", "eleitoral"),
		filepath.Join(dir, "extra"),
	}, w.directories())
	assert.Equal(t, DefaultDebounce, w.debounce)
}
