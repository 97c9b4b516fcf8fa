// Package server exposes the answer service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/ragcache/pkg/answer"
	"github.com/pario-ai/ragcache/pkg/models"
)

// CacheHeader carries the hit/miss verdict on /ask responses.
const CacheHeader = "X-Ragcache-Cache"

const maxBodyBytes = 1 << 20

// Answerer resolves questions.
type Answerer interface {
	Answer(ctx context.Context, question string) (models.AskResult, error)
}

// CacheStatter reports on the cache in front of the backend.
type CacheStatter interface {
	Stats(ctx context.Context) models.CacheStats
	Enabled() bool
	// Name identifies the store without contacting it.
	Name() string
}

// CallCounter reports backend invocations.
type CallCounter interface {
	Calls() int64
}

// Server is the ragcache HTTP endpoint.
type Server struct {
	listen  string
	answers Answerer
	cache   CacheStatter
	backend CallCounter
	log     zerolog.Logger
	mux     *http.ServeMux
}

// New creates a Server wired with all dependencies. backend may be nil.
func New(listen string, a Answerer, c CacheStatter, b CallCounter, log zerolog.Logger) *Server {
	s := &Server{
		listen:  listen,
		answers: a,
		cache:   c,
		backend: b,
		log:     log.With().Str("component", "server").Logger(),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/ask", s.handleAsk)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.listen).Msg("ragcache listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	r.Body.Close()

	var req models.AskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	res, err := s.answers.Answer(r.Context(), req.Query)
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion):
		writeJSONError(w, http.StatusBadRequest, "query must not be empty")
		return
	case err != nil:
		s.log.Error().Err(err).Msg("answer failed")
		writeJSONError(w, http.StatusBadGateway, "backend failed")
		return
	}

	resp := models.AskResponse{
		Query:     req.Query,
		Answer:    res.Answer.Text,
		FromCache: res.Outcome == models.OutcomeHit,
		LatencyMs: time.Since(start).Milliseconds(),
		CacheKey:  res.Key,
		Retrieval: models.Retrieval{Match: res.Answer.Match},
	}

	s.log.Info().
		Str("key", res.Key).
		Str("outcome", string(res.Outcome)).
		Int64("latency_ms", resp.LatencyMs).
		Msg("ask")

	w.Header().Set(CacheHeader, string(res.Outcome))
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status       string `json:"status"`
	Cache        string `json:"cache"`
	CacheEnabled bool   `json:"cache_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Cache:        s.cache.Name(),
		CacheEnabled: s.cache.Enabled(),
	})
}

type statsResponse struct {
	Cache        models.CacheStats `json:"cache"`
	BackendCalls int64             `json:"backend_calls"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Cache: s.cache.Stats(r.Context())}
	if s.backend != nil {
		resp.BackendCalls = s.backend.Calls()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"ragcache_error","code":%d}}`, message, code)
}
