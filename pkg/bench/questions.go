package bench

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/pario-ai/ragcache/pkg/cache"
)

// LoadQuestions reads one question per line, skipping blank lines.
func LoadQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer f.Close()

	var qs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			qs = append(qs, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("queries file %s is empty", path)
	}
	return qs, nil
}

// Generator draws benchmark questions with a controlled repeat ratio.
// It is not safe for concurrent use.
type Generator struct {
	ratio float64
	rng   *rand.Rand

	seed []string
	next int

	seen    []string
	seenKey map[string]struct{}
	synth   int
}

// NewGenerator returns a generator that repeats an already issued question
// with probability ratio. Novel questions come from seed in order, skipping
// canonical duplicates, and are synthesized once seed runs out.
func NewGenerator(seed []string, ratio float64, rng *rand.Rand) *Generator {
	return &Generator{
		ratio:   ratio,
		rng:     rng,
		seed:    seed,
		seenKey: make(map[string]struct{}),
	}
}

// Next returns the next question and whether it repeats an earlier one.
func (g *Generator) Next() (string, bool) {
	if len(g.seen) > 0 && g.rng.Float64() < g.ratio {
		return g.seen[g.rng.IntN(len(g.seen))], true
	}
	q := g.novel()
	g.seen = append(g.seen, q)
	g.seenKey[cache.Canonicalize(q)] = struct{}{}
	return q, false
}

// Seen returns how many distinct questions have been issued.
func (g *Generator) Seen() int {
	return len(g.seen)
}

func (g *Generator) novel() string {
	for g.next < len(g.seed) {
		q := g.seed[g.next]
		g.next++
		key := cache.Canonicalize(q)
		if key == "" {
			continue
		}
		if _, dup := g.seenKey[key]; !dup {
			return q
		}
	}
	for {
		g.synth++
		q := fmt.Sprintf("synthetic question %d", g.synth)
		if _, dup := g.seenKey[cache.Canonicalize(q)]; !dup {
			return q
		}
	}
}
