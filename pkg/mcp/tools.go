package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pario-ai/ragcache/pkg/answer"
)

type askArgs struct {
	Query string `json:"query"`
}

type runsArgs struct {
	Limit int `json:"limit"`
}

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"ragcache_ask":         handleAsk,
	"ragcache_cache_stats": handleCacheStats,
	"ragcache_runs":        handleRuns,
}

var allTools = []ToolDefinition{
	{
		Name:        "ragcache_ask",
		Description: "Answer a question through the exact-match cache, reporting whether it was a hit.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The question to answer",
				},
			},
		},
	},
	{
		Name:        "ragcache_cache_stats",
		Description: "Show answer cache statistics (entries, hits, misses, errors, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "ragcache_runs",
		Description: "List recorded benchmark runs, newest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of runs (optional, defaults to 20)",
				},
			},
		},
	},
}

func handleAsk(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args askArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	res, err := s.answers.Answer(ctx, args.Query)
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion):
		return errorResult("query is required")
	case err != nil:
		return errorResult("Error answering question: " + err.Error())
	}
	return textResult(formatAnswer(res))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	return textResult(formatCacheStats(s.cache.Stats(ctx)))
}

func handleRuns(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.runs == nil {
		return textResult("Run history is not configured.")
	}
	args := runsArgs{Limit: 20}
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	runs, err := s.runs.List(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching runs: " + err.Error())
	}
	return textResult(formatRuns(runs))
}
