package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 条目负载的封闭变体集。信封字段 (id/session/seq/timestamp/importance) 在
// Entry 上，负载按 EntryType 选型。
// Closed variant set for entry payloads. Envelope fields (id/session/seq/
// timestamp/importance) live on Entry; the payload shape follows EntryType.

// ThinkingContent 思考文本
// ThinkingContent is free-form reasoning text
type ThinkingContent struct {
	Text string `json:"text"`
}

// ToolRequestContent 工具调用请求
// ToolRequestContent is a tool invocation request
type ToolRequestContent struct {
	Tool   string          `json:"tool"`
	CallID string          `json:"call_id,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ToolResultContent 工具调用结果
// ToolResultContent is a tool invocation result
type ToolResultContent struct {
	Tool    string `json:"tool"`
	CallID  string `json:"call_id,omitempty"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// FileContent 文件读写记录
// FileContent records a file read or write
type FileContent struct {
	Path    string `json:"path"`
	Bytes   int    `json:"bytes,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// ErrorContent 错误记录
// ErrorContent records an error the agent hit
type ErrorContent struct {
	Message     string `json:"message"`
	Detail      string `json:"detail,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

// DecisionContent 关键决策及理由
// DecisionContent records a key decision and its rationale
type DecisionContent struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale,omitempty"`
}

// CheckpointContent 指向已持久化 checkpoint 的标记条目
// CheckpointContent marks a persisted checkpoint in the entry stream
type CheckpointContent struct {
	CheckpointID string `json:"checkpoint_id"`
	FromSeq      int64  `json:"from_seq"`
	ToSeq        int64  `json:"to_seq"`
}

// TextContent 通用文本负载 (session_start/session_end/user_feedback 等)
// TextContent is the generic text payload (session_start/session_end/user_feedback)
type TextContent struct {
	Text string `json:"text"`
}

// EncodeContent 将负载序列化为条目 content
// EncodeContent serializes a payload into entry content
func EncodeContent(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("{}"), nil
		}
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return data, nil
}

// DecodeContent 按条目类型解码负载；未知类型原样返回 raw JSON
// DecodeContent decodes the payload by entry type; unknown types return the
// raw JSON untouched
func DecodeContent(e Entry) (any, error) {
	switch e.Type {
	case EntryThinking:
		return decodeAs[ThinkingContent](e)
	case EntryToolRequest, EntryToolApproved, EntryToolRejected:
		return decodeAs[ToolRequestContent](e)
	case EntryToolResult:
		return decodeAs[ToolResultContent](e)
	case EntryFileRead, EntryFileWritten:
		return decodeAs[FileContent](e)
	case EntryError:
		return decodeAs[ErrorContent](e)
	case EntryDecision:
		return decodeAs[DecisionContent](e)
	case EntryCheckpoint:
		return decodeAs[CheckpointContent](e)
	case EntrySessionStart, EntrySessionEnd, EntryUserFeedback:
		return decodeAs[TextContent](e)
	default:
		return e.Content, nil
	}
}

func decodeAs[T any](e Entry) (T, error) {
	var v T
	if len(e.Content) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(e.Content, &v); err != nil {
		return v, fmt.Errorf("decode %s content: %w", e.Type, err)
	}
	return v, nil
}

// Excerpt 提取条目的单行摘录，用于恢复上下文和列表展示
// Excerpt extracts a one-line excerpt of the entry for resumption context and
// list views
func Excerpt(e Entry, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	text := ""
	payload, err := DecodeContent(e)
	if err != nil {
		text = string(e.Content)
	} else {
		switch v := payload.(type) {
		case ThinkingContent:
			text = v.Text
		case ToolRequestContent:
			text = v.Tool
			if len(v.Args) > 0 {
				text += " " + string(v.Args)
			}
		case ToolResultContent:
			text = v.Tool + ": " + v.Output
		case FileContent:
			text = v.Path
		case ErrorContent:
			text = v.Message
			if v.Detail != "" {
				text += " (" + v.Detail + ")"
			}
		case DecisionContent:
			text = v.Decision
			if v.Rationale != "" {
				text += " (" + v.Rationale + ")"
			}
		case CheckpointContent:
			text = fmt.Sprintf("checkpoint %s covering %d..%d", v.CheckpointID, v.FromSeq, v.ToSeq)
		case TextContent:
			text = v.Text
		default:
			text = string(e.Content)
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return text
}
