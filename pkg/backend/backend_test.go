package backend

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/models"
)

const kbFixture = `{"q": "How do I reset my password?", "a": "Use the reset link on the login page."}
{"q": "What are the support hours?", "a": "Weekdays 9 to 18."}

not json at all
{"q": "", "a": "ignored"}
{"q": "Как оформить возврат?", "a": "Через личный кабинет."}
`

func TestReadKnowledgeBase(t *testing.T) {
	kb, err := ReadKnowledgeBase(strings.NewReader(kbFixture))
	require.NoError(t, err)
	assert.Equal(t, 3, kb.Len())
}

func TestKnowledgeBaseFind(t *testing.T) {
	kb, err := ReadKnowledgeBase(strings.NewReader(kbFixture))
	require.NoError(t, err)

	tests := []struct {
		name     string
		question string
		want     models.Answer
	}{
		{"exact after canonicalization", "  how do I   RESET my password? ", models.Answer{Text: "Use the reset link on the login page.", Match: models.MatchExact}},
		{"keyword overlap", "password reset please", models.Answer{Text: "Use the reset link on the login page.", Match: models.MatchKeyword}},
		{"cyrillic keywords", "возврат товара", models.Answer{Text: "Через личный кабинет.", Match: models.MatchKeyword}},
		{"short words ignored", "is it on", models.Answer{Text: NotFoundAnswer, Match: models.MatchNone}},
		{"no overlap", "quantum chromodynamics", models.Answer{Text: NotFoundAnswer, Match: models.MatchNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kb.Find(tt.question))
		})
	}
}

func TestKnowledgeBaseDuplicateTakesLatestAnswer(t *testing.T) {
	kb, err := ReadKnowledgeBase(strings.NewReader(
		`{"q": "redis cache ttl", "a": "OLD"}` + "\n" +
			`{"q": "unrelated entry here", "a": "other"}` + "\n" +
			`{"q": "Redis  cache TTL", "a": "NEW"}` + "\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, kb.Len())
	assert.Equal(t, models.Answer{Text: "NEW", Match: models.MatchExact}, kb.Find("redis cache ttl"))
	assert.Equal(t, models.Answer{Text: "NEW", Match: models.MatchKeyword}, kb.Find("what is the redis ttl"))
}

func TestLoadKnowledgeBaseMissing(t *testing.T) {
	kb, err := LoadKnowledgeBase(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, kb.Len())
}

func TestLoadKnowledgeBaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(kbFixture), 0644))

	kb, err := LoadKnowledgeBase(path)
	require.NoError(t, err)
	assert.Equal(t, 3, kb.Len())
}

func TestDelayBounds(t *testing.T) {
	s := NewSimulated(600*time.Millisecond, 200*time.Millisecond, 42)
	for range 1000 {
		d := s.Delay()
		assert.GreaterOrEqual(t, d, 600*time.Millisecond)
		assert.LessOrEqual(t, d, 800*time.Millisecond)
	}
}

func TestDelayReproducible(t *testing.T) {
	a := NewSimulated(0, time.Second, 7)
	b := NewSimulated(0, time.Second, 7)
	for range 20 {
		assert.Equal(t, a.Delay(), b.Delay())
	}

	c := NewSimulated(0, time.Second, 1, WithSource(rand.NewPCG(7, 7^0x9e3779b97f4a7c15)))
	d := NewSimulated(0, time.Second, 7)
	assert.Equal(t, d.Delay(), c.Delay(), "WithSource overrides the seed")
}

func TestDelayNoJitter(t *testing.T) {
	s := NewSimulated(5*time.Millisecond, 0, 1)
	assert.Equal(t, 5*time.Millisecond, s.Delay())
}

func TestComputeBlocksAndCounts(t *testing.T) {
	s := NewSimulated(30*time.Millisecond, 0, 1)

	start := time.Now()
	ans, err := s.Compute(context.Background(), "what is ttl?")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, "Simulated answer to: what is ttl?", ans.Text)
	assert.EqualValues(t, 1, s.Calls())
}

func TestComputeUsesKnowledgeBase(t *testing.T) {
	kb, err := ReadKnowledgeBase(strings.NewReader(kbFixture))
	require.NoError(t, err)
	s := NewSimulated(0, 0, 1, WithKnowledgeBase(kb))

	ans, err := s.Compute(context.Background(), "What are the support hours?")
	require.NoError(t, err)
	assert.Equal(t, models.Answer{Text: "Weekdays 9 to 18.", Match: models.MatchExact}, ans)
}

func TestComputeCancelled(t *testing.T) {
	s := NewSimulated(time.Minute, 0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Compute(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
