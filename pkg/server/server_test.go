package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/answer"
	"github.com/pario-ai/ragcache/pkg/backend"
	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/cache/memory"
	"github.com/pario-ai/ragcache/pkg/models"
)

func setupServer(t *testing.T, c answer.Cache) (*Server, *backend.Simulated) {
	t.Helper()
	b := backend.NewSimulated(0, 0, 1)
	svc := answer.New(c, b, answer.Options{}, zerolog.Nop())
	statter, ok := c.(CacheStatter)
	require.True(t, ok)
	return New(":0", svc, statter, b, zerolog.Nop()), b
}

func ask(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestAskMissThenHit(t *testing.T) {
	c := cache.NewExact(memory.New(), cache.Options{Name: "memory", TTL: time.Hour}, zerolog.Nop())
	srv, b := setupServer(t, c)

	w := ask(t, srv, `{"query":"What is a TTL?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "miss", w.Header().Get(CacheHeader))

	var first models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.False(t, first.FromCache)
	assert.Equal(t, "What is a TTL?", first.Query)
	assert.Equal(t, "what is a ttl?", first.CacheKey)

	w2 := ask(t, srv, `{"query":"what is a   ttl?"}`)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "hit", w2.Header().Get(CacheHeader))

	var second models.AskResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, models.MatchCache, second.Retrieval.Match)

	assert.EqualValues(t, 1, b.Calls())
}

func TestAskDisabledCache(t *testing.T) {
	srv, b := setupServer(t, cache.Disabled{})

	for range 3 {
		w := ask(t, srv, `{"query":"same"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "miss", w.Header().Get(CacheHeader))
	}
	assert.EqualValues(t, 3, b.Calls())
}

func TestAskBadRequests(t *testing.T) {
	srv, _ := setupServer(t, cache.Disabled{})

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"empty query", http.MethodPost, `{"query":"   "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "ragcache_error")
		})
	}
}

type failingAnswerer struct{}

func (failingAnswerer) Answer(context.Context, string) (models.AskResult, error) {
	return models.AskResult{}, errors.Join(answer.ErrBackend, errors.New("upstream timeout"))
}

func TestAskBackendFailure(t *testing.T) {
	srv := New(":0", failingAnswerer{}, cache.Disabled{}, nil, zerolog.Nop())

	w := ask(t, srv, `{"query":"q"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, w.Header().Get(CacheHeader))
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, cache.Disabled{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Cache)
	assert.False(t, resp.CacheEnabled)
}

// statsCountingCache records how often Stats is called.
type statsCountingCache struct {
	cache.Disabled
	statsCalls int
}

func (c *statsCountingCache) Stats(ctx context.Context) models.CacheStats {
	c.statsCalls++
	return c.Disabled.Stats(ctx)
}

func (c *statsCountingCache) Name() string  { return "redis" }
func (c *statsCountingCache) Enabled() bool { return true }

func TestHealthDoesNotCountEntries(t *testing.T) {
	c := &statsCountingCache{}
	srv := New(":0", failingAnswerer{}, c, nil, zerolog.Nop())

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "redis", resp.Cache)
		assert.True(t, resp.CacheEnabled)
	}
	assert.Zero(t, c.statsCalls, "health must not touch the store")
}

func TestStats(t *testing.T) {
	c := cache.NewExact(memory.New(), cache.Options{Name: "memory"}, zerolog.Nop())
	srv, _ := setupServer(t, c)

	ask(t, srv, `{"query":"a"}`)
	ask(t, srv, `{"query":"a"}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Cache.Hits)
	assert.EqualValues(t, 1, resp.Cache.Misses)
	assert.EqualValues(t, 1, resp.Cache.Entries)
	assert.EqualValues(t, 1, resp.BackendCalls)
}

func TestListenAndServeShutdown(t *testing.T) {
	srv := New("127.0.0.1:0", failingAnswerer{}, cache.Disabled{}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
