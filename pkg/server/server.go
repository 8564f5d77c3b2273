// Package server exposes the consultation engine as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/coolbeans/inelegis/pkg/session"
	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Options configure a Server.
type Options struct {
	// SuggestionCacheSize bounds the suggestion cache; zero disables it.
	SuggestionCacheSize int
	// VerdictTTL is how long resolutions stay cached; zero disables it.
	VerdictTTL time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type suggestionKey struct {
	generation uint64
	codigo     string
	prefixo    string
}

// Server serves the API for the sessions published by a Holder.
type Server struct {
	holder  *session.Holder
	opts    Options
	logger  *slog.Logger
	metrics *metrics
	handler http.Handler

	suggestions *lru.Cache[suggestionKey, []string]
	verdicts    *gocache.Cache
}

// New creates a server. logger may be nil.
func New(holder *session.Holder, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		holder:  holder,
		opts:    opts,
		logger:  logger,
		metrics: newMetrics(holder),
	}

	if opts.SuggestionCacheSize > 0 {
		c, err := lru.New[suggestionKey, []string](opts.SuggestionCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create suggestion cache: %w", err)
		}
		s.suggestions = c
	}
	if opts.VerdictTTL > 0 {
		s.verdicts = gocache.New(opts.VerdictTTL, 2*opts.VerdictTTL)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = s.withRequestLogging(mux)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// resolveCached answers a query through the verdict cache. Keys carry the
// session generation, so entries from a replaced session are never hit.
func (s *Server) resolveCached(sess *session.Session, codigo, artigo string) (resolve.Resolution, bool) {
	key := fmt.Sprintf("%d\x00%s\x00%s", sess.Generation, codigo, artigo)
	if s.verdicts != nil {
		if cached, ok := s.verdicts.Get(key); ok {
			return cached.(resolve.Resolution), true
		}
	}
	res := sess.Resolver.Resolve(codigo, artigo)
	if s.verdicts != nil {
		s.verdicts.SetDefault(key, res)
	}
	return res, false
}

func (s *Server) suggestCached(sess *session.Session, codigo, prefixo string) ([]string, bool) {
	key := suggestionKey{generation: sess.Generation, codigo: codigo, prefixo: prefixo}
	if s.suggestions != nil {
		if cached, ok := s.suggestions.Get(key); ok {
			return cached, true
		}
	}
	out := sess.Index.Suggestions(codigo, prefixo)
	if s.suggestions != nil {
		s.suggestions.Add(key, out)
	}
	return out, false
}
