package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/models"
)

// NotFoundAnswer is returned when nothing in the knowledge base matches.
const NotFoundAnswer = "No answer found in the knowledge base. Try rephrasing the question."

// qaLine is one line of the knowledge base file.
type qaLine struct {
	Q string `json:"q"`
	A string `json:"a"`
}

type qaEntry struct {
	answer string
	words  map[string]struct{}
}

// KnowledgeBase is a read-only question/answer table.
type KnowledgeBase struct {
	exact map[string]string
	// entries keeps file order so keyword ties resolve to the first entry.
	entries []qaEntry
}

// LoadKnowledgeBase reads a JSONL file of {"q": ..., "a": ...} lines.
// A missing file yields an empty knowledge base.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &KnowledgeBase{exact: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	defer f.Close()
	return ReadKnowledgeBase(f)
}

// ReadKnowledgeBase parses JSONL from r, skipping blank and malformed lines.
func ReadKnowledgeBase(r io.Reader) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{exact: map[string]string{}}
	index := map[string]int{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var qa qaLine
		if err := json.Unmarshal([]byte(line), &qa); err != nil {
			continue
		}
		q := cache.Canonicalize(qa.Q)
		if q == "" {
			continue
		}
		// A repeated question keeps its first position but takes the latest answer.
		if i, dup := index[q]; dup {
			kb.entries[i].answer = qa.A
		} else {
			index[q] = len(kb.entries)
			kb.entries = append(kb.entries, qaEntry{answer: qa.A, words: keywords(q)})
		}
		kb.exact[q] = qa.A
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return kb, nil
}

// Len returns the number of distinct questions.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.exact)
}

// Find answers question by exact canonical match, then by the largest
// overlap of words longer than two letters.
func (kb *KnowledgeBase) Find(question string) models.Answer {
	if kb == nil {
		return models.Answer{Text: NotFoundAnswer, Match: models.MatchNone}
	}
	q := cache.Canonicalize(question)
	if a, ok := kb.exact[q]; ok {
		return models.Answer{Text: a, Match: models.MatchExact}
	}

	qWords := keywords(q)
	best, bestScore := -1, 0
	for i, e := range kb.entries {
		score := 0
		for w := range qWords {
			if _, ok := e.words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return models.Answer{Text: kb.entries[best].answer, Match: models.MatchKeyword}
	}
	return models.Answer{Text: NotFoundAnswer, Match: models.MatchNone}
}

// keywords splits s into letter/digit runs longer than two runes.
func keywords(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len([]rune(w)) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}
