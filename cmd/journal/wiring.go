package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"journal/internal/config"
	"journal/internal/hub"
	"journal/internal/journal"
	"journal/internal/store"
	"journal/internal/summarize"
	"journal/internal/token"
)

// buildService 按配置组装完整的日志服务
// buildService assembles the full journal service from config
func buildService(cfg config.Config) (*journal.Journal, error) {
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	j := journal.New(
		st,
		token.Default(),
		hub.New(cfg.Hub.BufferSize),
		buildSummarizer(cfg.Summarizer),
		journal.Options{
			TrimCeiling:       cfg.Trim.Ceiling,
			TrimTargetRatio:   cfg.Trim.TargetRatio,
			TrimMinInterval:   time.Duration(cfg.Trim.MinIntervalMS) * time.Millisecond,
			ResumptionTokens:  cfg.Resumption.TargetTokens,
			SummarizerTimeout: time.Duration(cfg.Summarizer.TimeoutMS) * time.Millisecond,
		},
	)
	return j, nil
}

// buildSummarizer 有 API key 则用 LLM 并以启发式兜底，否则纯启发式
// buildSummarizer uses the LLM with a heuristic fallback when an API key is
// present, and the plain heuristic otherwise
func buildSummarizer(cfg config.SummarizerConfig) summarize.Summarizer {
	if cfg.APIKey == "" {
		return &summarize.Heuristic{}
	}
	llm := summarize.NewLLMSummarizer(summarize.LLMConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		TimeoutMS: cfg.TimeoutMS,
	})
	return summarize.NewFallback(llm, &summarize.Heuristic{})
}
