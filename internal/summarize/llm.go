package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"journal/internal/record"
)

// LLMConfig LLM 摘要器配置
// LLMConfig configures the LLM summarizer
type LLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

// LLMSummarizer 使用 go-openai SDK 调用模型生成结构化摘要
// LLMSummarizer calls a model through the go-openai SDK for structured
// summaries
type LLMSummarizer struct {
	client *openai.Client
	model  string
	cfg    LLMConfig
}

// NewLLMSummarizer 创建基于 SDK 的摘要器
// NewLLMSummarizer creates an SDK-based summarizer
func NewLLMSummarizer(cfg LLMConfig) *LLMSummarizer {
	config := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	return &LLMSummarizer{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		cfg:    cfg,
	}
}

const summarySystemPrompt = `You are a precise summarizer for an autonomous agent's work journal.
Given a span of journal entries (and the prior checkpoint state, if any), produce a JSON object with exactly these fields:
{
  "summary": "what happened in this span, 2-5 sentences",
  "key_decisions": ["decision with brief rationale", ...],
  "current_state": "where the work stands right now",
  "files_modified": ["path", ...],
  "pending_actions": ["next concrete action", ...]
}
Preserve file paths, error messages and identifiers verbatim.
Output only the JSON object, no markdown fences, no commentary.`

func (s *LLMSummarizer) Summarize(ctx context.Context, entries []record.Entry, prior *record.Checkpoint) (Result, error) {
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("no entries to summarize")
	}

	userPrompt := buildSummaryInput(entries, prior)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			lastErr = fmt.Errorf("chat completion: %w", err)
			if ctx.Err() != nil {
				return Result{}, lastErr
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion response")
			continue
		}

		res, err := parseResult(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	return Result{}, lastErr
}

// parseResult 解析模型输出，容忍 markdown 代码围栏
// parseResult parses model output, tolerating markdown code fences
func parseResult(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	// 截取首个 JSON 对象 / Slice out the first JSON object
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndex(text, "}"); end >= 0 {
		text = text[:end+1]
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return Result{}, fmt.Errorf("parse summary output: %w", err)
	}
	if err := res.Validate(); err != nil {
		return Result{}, fmt.Errorf("malformed summary output: %w", err)
	}
	return res, nil
}
