// Package session wires the table, record, index and resolver layers into a
// single immutable snapshot and keeps the current snapshot available to
// concurrent readers.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coolbeans/inelegis/pkg/query"
	"github.com/coolbeans/inelegis/pkg/record"
	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/coolbeans/inelegis/pkg/table"
)

// ErrNotLoaded is returned by Holder methods that need a session before the
// first successful load.
var ErrNotLoaded = errors.New("session not loaded")

// Session is a fully built snapshot of the table. It is never modified after
// construction.
type Session struct {
	Records  []*record.LegalRecord
	Index    *query.Index
	Resolver *resolve.Resolver

	// Sources and Issues describe the load that produced the session.
	Sources []string
	Issues  []table.Issue

	BuiltAt time.Time
	// Generation increases with every session a Holder publishes. Sessions
	// built directly with New have generation 0.
	Generation uint64
}

// Stats summarises a session.
type Stats struct {
	Generation uint64                  `json:"generation"`
	Records    int                     `json:"records"`
	Laws       int                     `json:"laws"`
	Sources    int                     `json:"sources"`
	Issues     map[table.IssueKind]int `json:"issues"`
	BuiltAt    time.Time               `json:"built_at"`
}

// New builds a session from raw rows.
func New(rows []record.RawRow) *Session {
	return build(rows, 0)
}

func build(rows []record.RawRow, generation uint64) *Session {
	records := record.Build(rows)
	index := query.NewIndex(records)
	return &Session{
		Records:    records,
		Index:      index,
		Resolver:   resolve.New(index, records),
		BuiltAt:    time.Now(),
		Generation: generation,
	}
}

// Stats returns counts for the session.
func (s *Session) Stats() Stats {
	issues := make(map[table.IssueKind]int)
	for _, issue := range s.Issues {
		issues[issue.Kind]++
	}
	return Stats{
		Generation: s.Generation,
		Records:    len(s.Records),
		Laws:       len(s.Index.Laws()),
		Sources:    len(s.Sources),
		Issues:     issues,
		BuiltAt:    s.BuiltAt,
	}
}

// Holder publishes the current session. Readers call Current without
// locking; Reload and Store replace the whole session at once.
type Holder struct {
	loader  *table.Loader
	sources []string
	logger  *slog.Logger

	current    atomic.Pointer[Session]
	generation atomic.Uint64
	mu         sync.Mutex
}

// NewHolder creates a holder reading sources through loader. Both may be
// nil for a holder fed only through Store.
func NewHolder(loader *table.Loader, sources []string, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{loader: loader, sources: sources, logger: logger}
}

// Sources returns the source patterns the holder reloads from.
func (h *Holder) Sources() []string {
	return h.sources
}

// Current returns the published session, or nil before the first load.
func (h *Holder) Current() *Session {
	return h.current.Load()
}

// Store builds a session from rows and publishes it.
func (h *Holder) Store(rows []record.RawRow) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := build(rows, h.generation.Add(1))
	h.current.Store(s)
	return s
}

// Reload reads every source again and publishes a freshly built session.
// On error the previous session stays current.
func (h *Holder) Reload(ctx context.Context) (*Session, error) {
	if h.loader == nil {
		return nil, errors.New("session holder has no loader")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	result, err := h.loader.Load(ctx, h.sources)
	if err != nil {
		h.logger.Error("Table reload failed", "error", err)
		return nil, err
	}

	s := build(result.Rows, h.generation.Add(1))
	s.Sources = result.Sources
	s.Issues = result.Issues
	h.current.Store(s)

	h.logger.Info("Table loaded",
		"generation", s.Generation,
		"sources", len(s.Sources),
		"records", len(s.Records),
		"issues", len(s.Issues),
		"elapsed", time.Since(start))

	return s, nil
}
