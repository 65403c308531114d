package hub

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"journal/internal/logger"
	"journal/internal/record"
)

// EventKind 事件类型
// EventKind is the kind of a published event
type EventKind string

const (
	// EventEntry 新条目事件 / A new entry was appended
	EventEntry EventKind = "new-entry"
	// EventStatus 会话状态变更事件 / A session status changed
	EventStatus EventKind = "status-change"
)

// Event 推送给观察者的事件
// Event is what observers receive
type Event struct {
	Kind      EventKind            `json:"kind"`
	SessionID string               `json:"session_id"`
	Entry     *record.Entry        `json:"entry,omitempty"`
	Status    record.SessionStatus `json:"status,omitempty"`
}

// defaultBufferSize 每个观察者通道的默认缓冲
// defaultBufferSize is the default per-observer channel buffer
const defaultBufferSize = 256

// Hub 按会话扇出事件；慢观察者丢弃并记录，绝不阻塞发布方
// Hub fans out events per session; slow observers drop-and-log, the
// publisher never blocks
type Hub struct {
	mu        sync.RWMutex
	observers map[string]map[string]chan Event // sessionID -> observerID -> channel
	closed    bool

	bufferSize int
	log        zerolog.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

// New 创建 Hub；bufferSize <= 0 使用默认缓冲
// New creates a Hub; bufferSize <= 0 uses the default buffer
func New(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		observers:  make(map[string]map[string]chan Event),
		bufferSize: bufferSize,
		log:        logger.With("hub"),
	}
}

// Subscribe 订阅一个会话；重复订阅返回同一通道，不会产生双份投递
// Subscribe subscribes an observer to a session; subscribing twice returns
// the same channel and never doubles delivery
func (h *Hub) Subscribe(sessionID, observerID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	session, ok := h.observers[sessionID]
	if !ok {
		session = make(map[string]chan Event)
		h.observers[sessionID] = session
	}
	if ch, ok := session[observerID]; ok {
		return ch
	}
	ch := make(chan Event, h.bufferSize)
	session[observerID] = ch
	return ch
}

// Unsubscribe 退订；不存在的观察者为 no-op
// Unsubscribe removes an observer; absent observers are a no-op
func (h *Hub) Unsubscribe(sessionID, observerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.observers[sessionID]
	if !ok {
		return
	}
	ch, ok := session[observerID]
	if !ok {
		return
	}
	delete(session, observerID)
	close(ch)
	// 最后一个观察者退订后不再持有任何资源
	// No resources are held once the last observer unsubscribes
	if len(session) == 0 {
		delete(h.observers, sessionID)
	}
}

// UnsubscribeAll 退订某观察者在所有会话上的订阅；owning context 关闭时必须调用
// UnsubscribeAll removes an observer from every session; the owning context
// must call this on shutdown
func (h *Hub) UnsubscribeAll(observerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, session := range h.observers {
		if ch, ok := session[observerID]; ok {
			delete(session, observerID)
			close(ch)
			if len(session) == 0 {
				delete(h.observers, sessionID)
			}
		}
	}
}

// PublishEntry 向会话的所有观察者投递新条目事件
// PublishEntry delivers a new-entry event to every observer of the session
func (h *Hub) PublishEntry(e record.Entry) {
	entry := e
	h.publish(e.SessionID, Event{Kind: EventEntry, SessionID: e.SessionID, Entry: &entry})
}

// PublishStatusChange 向会话的所有观察者投递状态变更事件
// PublishStatusChange delivers a status-change event to every observer of
// the session
func (h *Hub) PublishStatusChange(sessionID string, status record.SessionStatus) {
	h.publish(sessionID, Event{Kind: EventStatus, SessionID: sessionID, Status: status})
}

// publish 在读锁下非阻塞发送；通道满则丢弃计数
// publish sends without blocking under the read lock; full channels count a
// drop
func (h *Hub) publish(sessionID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for observerID, ch := range h.observers[sessionID] {
		select {
		case ch <- ev:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
			h.log.Warn().
				Str("session", sessionID).
				Str("observer", observerID).
				Str("kind", string(ev.Kind)).
				Msg("observer buffer full, event dropped")
		}
	}
}

// ObserverCount 返回会话当前的观察者数
// ObserverCount returns the current observer count for a session
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[sessionID])
}

// Delivered 返回累计投递数 / Delivered returns total delivered events
func (h *Hub) Delivered() int64 { return h.delivered.Load() }

// Dropped 返回累计丢弃数 / Dropped returns total dropped events
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close 关闭 Hub，释放所有观察者通道
// Close shuts down the Hub and releases every observer channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sessionID, session := range h.observers {
		for _, ch := range session {
			close(ch)
		}
		delete(h.observers, sessionID)
	}
}
