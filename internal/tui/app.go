package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"journal/internal/hub"
	"journal/internal/record"
)

// PanelID 面板标识
// PanelID identifies a panel
type PanelID int

const (
	PanelEntries PanelID = iota
	PanelErrors
	PanelCheckpoints
)

// --- Tea Messages ---

// EntryMsg 新追加的条目
// EntryMsg is a freshly appended entry
type EntryMsg struct{ Entry record.Entry }

// StatusMsg 会话状态变更
// StatusMsg is a session status change
type StatusMsg struct{ Status record.SessionStatus }

// SnapshotMsg 初始快照：订阅前已有的会话数据
// SnapshotMsg is the initial snapshot of pre-existing session data
type SnapshotMsg struct {
	Session     record.Session
	Entries     []record.Entry
	Checkpoints []record.Checkpoint
}

// ClosedMsg 事件流结束 / The event stream ended
type ClosedMsg struct{}

// App 会话观察器的 Bubble Tea 主 Model
// App is the session watcher's main Bubble Tea model
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 面板 / Panels
	activePanel PanelID
	entriesView viewport.Model
	errorsView  viewport.Model
	ckptsView   viewport.Model

	// 会话数据 / Session data
	session     record.Session
	entryCount  int
	errorCount  int
	checkpoints []record.Checkpoint

	// 内容缓冲 / Content buffers
	entryContent strings.Builder
	errorContent strings.Builder
	ckptContent  strings.Builder

	// 事件源 / Event source
	events <-chan hub.Event
	closed bool

	// 配置 / Config
	theme Theme
	keys  KeyMap
}

// NewApp 创建观察器；events 为 nil 时只显示快照
// NewApp builds the watcher; a nil events channel shows the snapshot only
func NewApp(sessionID string, events <-chan hub.Event) App {
	return App{
		activePanel: PanelEntries,
		session:     record.Session{ID: sessionID},
		events:      events,
		theme:       DarkTheme(),
		keys:        DefaultKeyMap(),
	}
}

// waitForEvent 把 hub 事件桥接为 tea 消息
// waitForEvent bridges one hub event into a tea message
func (a App) waitForEvent() tea.Cmd {
	if a.events == nil {
		return nil
	}
	events := a.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return ClosedMsg{}
		}
		switch ev.Kind {
		case hub.EventStatus:
			return StatusMsg{Status: ev.Status}
		default:
			if ev.Entry == nil {
				return ClosedMsg{}
			}
			return EntryMsg{Entry: *ev.Entry}
		}
	}
}

func (a App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.SwitchPanel):
			a.activePanel = (a.activePanel + 1) % 3
			return a, nil
		case key.Matches(msg, a.keys.ScrollUp):
			a.scrollActive(-1)
			return a, nil
		case key.Matches(msg, a.keys.ScrollDown):
			a.scrollActive(1)
			return a, nil
		case key.Matches(msg, a.keys.PageUp):
			a.pageActive(-1)
			return a, nil
		case key.Matches(msg, a.keys.PageDown):
			a.pageActive(1)
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case SnapshotMsg:
		a.session = msg.Session
		a.checkpoints = msg.Checkpoints
		for _, e := range msg.Entries {
			a.ingestEntry(e)
		}
		// 快照自带的累计值覆盖逐条统计 (折叠条目不在快照里)
		// The snapshot's own totals override per-entry counting (folded
		// entries are absent from the snapshot)
		a.session.TokenEstimate = msg.Session.TokenEstimate
		if msg.Session.EntryCount > a.entryCount {
			a.entryCount = msg.Session.EntryCount
		}
		for _, cp := range msg.Checkpoints {
			a.appendCkpt(cp)
		}
		return a, nil

	case EntryMsg:
		a.ingestEntry(msg.Entry)
		return a, a.waitForEvent()

	case StatusMsg:
		a.session.Status = msg.Status
		a.appendEntryLine(a.theme.MutedStyle.Render(
			fmt.Sprintf("── session %s ──", msg.Status)))
		if msg.Status.Terminal() {
			a.closed = true
		}
		return a, a.waitForEvent()

	case ClosedMsg:
		a.closed = true
		return a, nil
	}

	return a, nil
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	// 侧边栏宽度 / Sidebar width
	sidebarWidth := a.width * 25 / 100
	if sidebarWidth < 20 {
		sidebarWidth = 20
	}
	if sidebarWidth > 36 {
		sidebarWidth = 36
	}
	if a.width < 80 {
		sidebarWidth = 0
	}

	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth-- // border
	}

	statusHeight := 1
	tabHeight := 1
	panelHeight := a.height - statusHeight - tabHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs(mainWidth)
	panel := a.renderActivePanel(mainWidth, panelHeight)
	statusBar := a.renderStatusBar(a.width)

	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel)
	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-statusHeight)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

// --- 内部方法 / Internal methods ---

func (a *App) relayout() {
	mainWidth := a.width
	panelHeight := a.height - 2
	if panelHeight < 3 {
		panelHeight = 3
	}

	a.entriesView = viewport.New(mainWidth, panelHeight)
	a.entriesView.SetContent(a.entryContent.String())

	a.errorsView = viewport.New(mainWidth, panelHeight)
	a.errorsView.SetContent(a.errorContent.String())

	a.ckptsView = viewport.New(mainWidth, panelHeight)
	a.ckptsView.SetContent(a.ckptContent.String())
}

func (a *App) scrollActive(lines int) {
	v := a.activeView()
	if lines < 0 {
		v.ScrollUp(-lines)
	} else {
		v.ScrollDown(lines)
	}
}

func (a *App) pageActive(dir int) {
	v := a.activeView()
	if dir < 0 {
		v.PageUp()
	} else {
		v.PageDown()
	}
}

func (a *App) activeView() *viewport.Model {
	switch a.activePanel {
	case PanelErrors:
		return &a.errorsView
	case PanelCheckpoints:
		return &a.ckptsView
	default:
		return &a.entriesView
	}
}

func (a *App) ingestEntry(e record.Entry) {
	a.entryCount++
	a.session.TokenEstimate += e.TokenEstimate
	a.appendEntryLine(RenderEntryLine(e, a.theme))

	if e.Type == record.EntryError {
		a.errorCount++
		a.errorContent.WriteString(RenderEntryLine(e, a.theme) + "\n")
		a.errorsView.SetContent(a.errorContent.String())
	}
	if e.Type == record.EntryCheckpoint {
		a.ckptContent.WriteString(RenderEntryLine(e, a.theme) + "\n")
		a.ckptsView.SetContent(a.ckptContent.String())
	}
}

func (a *App) appendEntryLine(line string) {
	a.entryContent.WriteString(line + "\n")
	a.entriesView.SetContent(a.entryContent.String())
	a.entriesView.GotoBottom()
}

func (a *App) appendCkpt(cp record.Checkpoint) {
	a.ckptContent.WriteString(fmt.Sprintf("■ %s  %d..%d  %s\n",
		cp.CreatedAt.Format("15:04:05"), cp.FromSeq, cp.ToSeq, cp.Summary))
	a.ckptsView.SetContent(a.ckptContent.String())
}

// --- 渲染方法 / Render methods ---

func (a App) renderTabs(width int) string {
	_ = width
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelEntries, "Entries"},
		{PanelErrors, fmt.Sprintf("Errors (%d)", a.errorCount)},
		{PanelCheckpoints, "Checkpoints"},
	}

	var parts []string
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderActivePanel(width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height)

	var content string
	switch a.activePanel {
	case PanelEntries:
		if a.entryContent.Len() == 0 {
			content = a.theme.MutedStyle.Render("  No entries yet")
		} else {
			content = a.entriesView.View()
		}
	case PanelErrors:
		if a.errorContent.Len() == 0 {
			content = a.theme.MutedStyle.Render("  No errors recorded")
		} else {
			content = a.errorsView.View()
		}
	case PanelCheckpoints:
		if a.ckptContent.Len() == 0 {
			content = a.theme.MutedStyle.Render("  No checkpoints yet")
		} else {
			content = a.ckptsView.View()
		}
	}
	return style.Render(content)
}

func (a App) renderSidebar(width, height int) string {
	var parts []string

	parts = append(parts, a.theme.TitleStyle.Render(" Journal"))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" Session"))
	parts = append(parts, "  "+a.session.ID)
	parts = append(parts, "  "+RenderStatus(a.session.Status, a.theme))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" Activity"))
	parts = append(parts, fmt.Sprintf("  %d entries", a.entryCount))
	parts = append(parts, fmt.Sprintf("  %d errors", a.errorCount))
	parts = append(parts, fmt.Sprintf("  ~%d tokens", a.session.TokenEstimate))
	parts = append(parts, "")

	if prompt := a.session.OriginalPrompt; prompt != "" {
		parts = append(parts, a.theme.TitleStyle.Render(" Prompt"))
		parts = append(parts, "  "+truncateLine(prompt, width-4))
		parts = append(parts, "")
	}

	content := strings.Join(parts, "\n")
	return a.theme.SidebarStyle.Width(width).Height(height).Render(content)
}

func (a App) renderStatusBar(width int) string {
	status := "watching"
	if a.closed {
		status = "stream closed"
	}

	left := fmt.Sprintf(" %s · %s", a.session.ID, status)
	right := "tab: panels  q: quit  "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

func truncateLine(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// Run 启动观察器；snapshot 先行注入，随后消费事件流直到退出
// Run starts the watcher; the snapshot is injected first, then the event
// stream is consumed until quit
func Run(snapshot SnapshotMsg, events <-chan hub.Event) error {
	app := NewApp(snapshot.Session.ID, events)
	p := tea.NewProgram(app, tea.WithAltScreen())
	go p.Send(snapshot)
	_, err := p.Run()
	return err
}
