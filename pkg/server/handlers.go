package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/record"
	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/coolbeans/inelegis/pkg/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LawsResponse is the response for GET /api/leis.
type LawsResponse struct {
	Leis       []record.LawSummary `json:"leis"`
	Total      int                 `json:"total"`
	Generation uint64              `json:"generation"`
}

// RecordsResponse is the response for GET /api/leis/{codigo}/registros.
type RecordsResponse struct {
	Codigo    string                `json:"codigo"`
	Registros []*record.LegalRecord `json:"registros"`
}

// SuggestionsResponse is the response for GET /api/leis/{codigo}/sugestoes.
type SuggestionsResponse struct {
	Codigo    string   `json:"codigo"`
	Prefixo   string   `json:"prefixo"`
	Sugestoes []string `json:"sugestoes"`
}

// ArticlesResponse is the response for GET /api/artigos.
type ArticlesResponse struct {
	Texto   string   `json:"texto"`
	Artigos []string `json:"artigos"`
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/leis", s.handleLaws)
	mux.HandleFunc("GET /api/leis/{codigo}/registros", s.handleRecords)
	mux.HandleFunc("GET /api/leis/{codigo}/sugestoes", s.handleSuggestions)
	mux.HandleFunc("GET /api/consulta", s.handleResolve)
	mux.HandleFunc("GET /api/artigos", s.handleArticles)
	mux.HandleFunc("POST /api/recarregar", s.handleReload)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
}

// currentSession returns the current session or answers 503.
func (s *Server) currentSession(w http.ResponseWriter) *session.Session {
	sess := s.holder.Current()
	if sess == nil {
		s.writeError(w, http.StatusServiceUnavailable, "table not loaded")
	}
	return sess
}

func (s *Server) handleLaws(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w)
	if sess == nil {
		return
	}
	laws := sess.Index.Laws()
	s.writeJSON(w, http.StatusOK, LawsResponse{Leis: laws, Total: len(laws), Generation: sess.Generation})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w)
	if sess == nil {
		return
	}
	codigo := r.PathValue("codigo")
	records := sess.Index.RecordsForLaw(codigo)
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "law not found")
		return
	}
	s.writeJSON(w, http.StatusOK, RecordsResponse{Codigo: codigo, Registros: records})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w)
	if sess == nil {
		return
	}
	codigo := r.PathValue("codigo")
	prefixo := strings.TrimSpace(r.URL.Query().Get("prefixo"))

	out, hit := s.suggestCached(sess, codigo, prefixo)
	if hit {
		s.metrics.cacheHits.WithLabelValues("suggestions").Inc()
	}
	s.writeJSON(w, http.StatusOK, SuggestionsResponse{Codigo: codigo, Prefixo: prefixo, Sugestoes: out})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codigo := strings.TrimSpace(q.Get("codigo"))
	artigo := strings.TrimSpace(q.Get("artigo"))
	if codigo == "" || artigo == "" {
		s.writeError(w, http.StatusBadRequest, "codigo and artigo are required")
		return
	}

	sess := s.currentSession(w)
	if sess == nil {
		return
	}

	res, hit := s.resolveCached(sess, codigo, artigo)
	if hit {
		s.metrics.cacheHits.WithLabelValues("verdicts").Inc()
	}
	s.metrics.resolutions.WithLabelValues(string(res.Status)).Inc()

	status := http.StatusOK
	if res.Status == resolve.StatusInvalidQuery {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	texto := r.URL.Query().Get("texto")
	s.writeJSON(w, http.StatusOK, ArticlesResponse{Texto: texto, Artigos: extract.ExtractArticles(texto)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.holder.Reload(r.Context())
	if err != nil {
		s.logger.Error("Reload requested over HTTP failed",
			"request_id", RequestID(r.Context()),
			"error", err)
		s.writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w)
	if sess == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
