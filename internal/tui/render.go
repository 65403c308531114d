package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"journal/internal/record"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderEntryLine 将条目渲染为带颜色的单行
// RenderEntryLine renders one entry as a colorized line
func RenderEntryLine(e record.Entry, theme Theme) string {
	line := fmt.Sprintf("%s %5d  %-13s %s",
		e.Timestamp.Format("15:04:05"), e.Seq, e.Type, record.Excerpt(e, 120))

	switch e.Type {
	case record.EntryError:
		return theme.ErrorStyle.Render(line)
	case record.EntryCheckpoint:
		return theme.CheckpointStyle.Render(line)
	case record.EntryDecision:
		return theme.DecisionStyle.Render(line)
	case record.EntrySessionStart, record.EntrySessionEnd:
		return theme.TitleStyle.Render(line)
	case record.EntryThinking:
		return theme.MutedStyle.Render(line)
	default:
		return line
	}
}

// RenderStatus 渲染会话状态标签
// RenderStatus renders a session status label
func RenderStatus(status record.SessionStatus, theme Theme) string {
	switch status {
	case record.StatusActive:
		return theme.SuccessStyle.Render(string(status))
	case record.StatusCrashed:
		return theme.ErrorStyle.Render(string(status))
	case record.StatusPaused:
		return theme.WarningStyle.Render(string(status))
	default:
		return string(status)
	}
}
