package models

import "time"

// Outcome is the cache verdict for a single answered question.
type Outcome string

const (
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
)

// Match kinds reported alongside an answer.
const (
	MatchCache   = "cache"
	MatchExact   = "exact"
	MatchKeyword = "keyword"
	MatchNone    = "none"
)

// Answer is the payload produced by the backend.
type Answer struct {
	Text  string `json:"text"`
	Match string `json:"match"`
}

// AskResult is what the answer service returns for one question.
type AskResult struct {
	Question string        `json:"question"`
	Key      string        `json:"key"`
	Answer   Answer        `json:"answer"`
	Outcome  Outcome       `json:"outcome"`
	Latency  time.Duration `json:"latency"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Query string `json:"query"`
}

// Retrieval describes how the answer was found.
type Retrieval struct {
	Match string `json:"match"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	FromCache bool      `json:"from_cache"`
	LatencyMs int64     `json:"latency_ms"`
	CacheKey  string    `json:"cache_key"`
	Retrieval Retrieval `json:"retrieval"`
}
