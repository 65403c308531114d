package token

import (
	"encoding/json"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"journal/internal/record"
)

// Estimator token 估算器，tiktoken 优先，失败回退到确定性启发式
// Estimator estimates token counts with tiktoken and a deterministic
// heuristic fallback
type Estimator struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool // 是否使用启发式回退 / Whether using heuristic fallback
	mu           sync.RWMutex
}

var (
	defaultEstimator     *Estimator
	defaultEstimatorOnce sync.Once
)

// Default 返回全局默认的估算器实例
// Default returns the global default estimator instance
func Default() *Estimator {
	defaultEstimatorOnce.Do(func() {
		defaultEstimator = NewEstimator("cl100k_base")
	})
	return defaultEstimator
}

// NewEstimator 创建估算器，tiktoken 初始化失败时回退到启发式
// NewEstimator creates an estimator, falling back to the heuristic when
// tiktoken cannot initialize
func NewEstimator(encodingName string) *Estimator {
	e := &Estimator{encodingName: encodingName}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// 离线环境可能没有 BPE 缓存，回退到启发式
		// Offline environments may lack BPE cache, fallback to heuristic
		e.fallback = true
		return e
	}
	e.encoder = enc
	return e
}

// NewHeuristicEstimator 创建只用启发式的估算器；离线与测试场景使用
// NewHeuristicEstimator creates a heuristic-only estimator for offline and
// test use
func NewHeuristicEstimator() *Estimator {
	return &Estimator{encodingName: "heuristic", fallback: true}
}

// EstimateText 估算单段文本的 token 数，空文本为 0
// EstimateText estimates tokens for a single text string, 0 for empty text
func (e *Estimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	if e.fallback {
		return heuristicTokenCount(text)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.encoder.Encode(text, nil, nil))
}

// EstimateContent 估算任意结构化负载；按序列化后的 JSON 计
// EstimateContent estimates an arbitrary structured payload by its
// serialized JSON form
func (e *Estimator) EstimateContent(content any) int {
	switch v := content.(type) {
	case nil:
		return 0
	case string:
		return e.EstimateText(v)
	case json.RawMessage:
		return e.EstimateText(string(v))
	case []byte:
		return e.EstimateText(string(v))
	}
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return e.EstimateText(string(data))
}

// EstimateEntry 估算条目大小，含类型标签的少量结构开销
// EstimateEntry estimates an entry's size, with a small structural overhead
// for the type tag
func (e *Estimator) EstimateEntry(entryType record.EntryType, content json.RawMessage) int {
	// 信封开销: ~4 tokens / envelope overhead: ~4 tokens
	tokens := 4
	tokens += e.EstimateText(string(entryType))
	tokens += e.EstimateText(string(content))
	return tokens
}

// IsPrecise 返回是否使用精确计数
// IsPrecise returns whether precise counting is available
func (e *Estimator) IsPrecise() bool {
	return !e.fallback
}

// EncodingName 返回编码名称
// EncodingName returns the encoding name
func (e *Estimator) EncodingName() string {
	return e.encodingName
}

// heuristicTokenCount 启发式 token 估算 (CJK 感知)
// heuristicTokenCount is a CJK-aware token heuristic
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	// CJK 字符通常 1-2 token/字, 英文约 4 chars/token
	// CJK characters are typically 1-2 tokens each, English ~4 chars/token
	cjkCount := 0
	asciiCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			asciiCount++
		}
	}
	estimate := int(float64(cjkCount)*1.5 + float64(asciiCount)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols
		(r >= 0xFF00 && r <= 0xFFEF) || // Fullwidth Forms
		(r >= 0xAC00 && r <= 0xD7AF) // Korean Hangul
}
