package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"journal/internal/hub"
	"journal/internal/logger"
	"journal/internal/record"
	"journal/internal/store"
	"journal/internal/summarize"
	"journal/internal/token"
)

// Options 服务调优参数；零值字段使用内置默认
// Options tunes the service; zero fields use built-in defaults
type Options struct {
	// TrimCeiling 工作集上限 / Working-set ceiling
	TrimCeiling int
	// TrimTargetRatio 裁剪后保留 Ceiling*Ratio 条未折叠条目
	// TrimTargetRatio keeps Ceiling*Ratio unfolded entries after a trim
	TrimTargetRatio float64
	// TrimMinInterval 自动 checkpoint 最小间隔；手动不受限
	// TrimMinInterval rate-limits automatic checkpoints; manual ones are exempt
	TrimMinInterval time.Duration
	// ResumptionTokens 恢复上下文默认预算 / Default resumption budget
	ResumptionTokens int
	// SummarizerTimeout 单次摘要调用的超时 / Per-call summarizer timeout
	SummarizerTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TrimCeiling <= 0 {
		o.TrimCeiling = 100
	}
	if o.TrimTargetRatio <= 0 || o.TrimTargetRatio >= 1 {
		o.TrimTargetRatio = 0.75
	}
	if o.TrimMinInterval <= 0 {
		o.TrimMinInterval = 30 * time.Second
	}
	if o.ResumptionTokens <= 0 {
		o.ResumptionTokens = 4000
	}
	if o.SummarizerTimeout <= 0 {
		o.SummarizerTimeout = 30 * time.Second
	}
	return o
}

// Journal 工作日志服务，显式构造、显式关闭，不依赖全局状态
// Journal is the work journal service: explicitly constructed, explicitly
// closed, no ambient global state
type Journal struct {
	store      store.Store
	estimator  *token.Estimator
	hub        *hub.Hub
	summarizer summarize.Summarizer
	opts       Options
	log        zerolog.Logger

	// appendLocks 按会话序列化 append 与状态迁移；跨会话完全并发
	// appendLocks serialize appends and status transitions per session;
	// sessions stay fully concurrent with each other
	mu          sync.Mutex
	appendLocks map[string]*sync.Mutex
	ckptLocks   map[string]*sync.Mutex
	lastAuto    map[string]time.Time

	followUps sync.WaitGroup
	closeOnce sync.Once
	closedCh  chan struct{}
}

// New 组装日志服务；store/hub 的关闭由 Close 负责
// New assembles the journal service; Close owns shutting down store and hub
func New(st store.Store, est *token.Estimator, h *hub.Hub, sum summarize.Summarizer, opts Options) *Journal {
	if est == nil {
		est = token.Default()
	}
	if h == nil {
		h = hub.New(0)
	}
	return &Journal{
		store:       st,
		estimator:   est,
		hub:         h,
		summarizer:  sum,
		opts:        opts.withDefaults(),
		log:         logger.With("journal"),
		appendLocks: make(map[string]*sync.Mutex),
		ckptLocks:   make(map[string]*sync.Mutex),
		lastAuto:    make(map[string]time.Time),
		closedCh:    make(chan struct{}),
	}
}

// Close 等待在途后台工作并释放资源
// Close waits for in-flight follow-up work and releases resources
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		// 与 scheduleTrim 的判定+Add 同锁，保证 Wait 之后不再有新任务
		// Same lock as scheduleTrim's check-then-Add, so no follow-up is
		// registered after Wait starts
		j.mu.Lock()
		close(j.closedCh)
		j.mu.Unlock()
		j.followUps.Wait()
		j.hub.Close()
		err = j.store.Close()
	})
	return err
}

// Flush 等待当前所有后台裁剪/checkpoint 工作完成；测试和关停前使用
// Flush waits for all pending trim/checkpoint follow-up work; used by tests
// and before shutdown
func (j *Journal) Flush() {
	j.followUps.Wait()
}

func (j *Journal) closed() bool {
	select {
	case <-j.closedCh:
		return true
	default:
		return false
	}
}

func (j *Journal) appendLock(sessionID string) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, ok := j.appendLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		j.appendLocks[sessionID] = l
	}
	return l
}

func (j *Journal) checkpointLock(sessionID string) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, ok := j.ckptLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		j.ckptLocks[sessionID] = l
	}
	return l
}

// LogEntry 追加一条日志: 持久化、通知订阅者、再评估裁剪，依序进行
// LogEntry appends one entry: persist, notify subscribers, then evaluate
// trimming, in that order
func (j *Journal) LogEntry(ctx context.Context, sessionID string, entryType record.EntryType, content any, importance record.Importance) (record.Entry, error) {
	e, err := j.appendEntry(ctx, sessionID, entryType, content, importance)
	if err != nil {
		return record.Entry{}, err
	}
	j.scheduleTrim(sessionID)
	return e, nil
}

// appendEntry 持久化并发布，不触发裁剪 (内部路径复用)
// appendEntry persists and publishes without triggering trim (shared by
// internal paths)
func (j *Journal) appendEntry(_ context.Context, sessionID string, entryType record.EntryType, content any, importance record.Importance) (record.Entry, error) {
	raw, err := record.EncodeContent(content)
	if err != nil {
		return record.Entry{}, err
	}
	if importance == "" {
		importance = record.ImportanceNormal
	}

	lock := j.appendLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	e := record.Entry{
		SessionID:     sessionID,
		Type:          entryType,
		Timestamp:     time.Now().UTC(),
		Content:       raw,
		TokenEstimate: j.estimator.EstimateEntry(entryType, raw),
		Importance:    importance,
	}
	e, err = j.store.AppendEntry(e)
	if err != nil {
		return record.Entry{}, err
	}

	// 锁内发布以保证每会话事件有序 / Publish under the lock so per-session
	// event order matches seq order
	j.hub.PublishEntry(e)
	return e, nil
}

// Entries 按过滤条件读取条目；非活跃会话同样可读
// Entries reads entries with filters; non-active sessions stay readable
func (j *Journal) Entries(ctx context.Context, sessionID string, filter store.EntryFilter) ([]record.Entry, error) {
	_ = ctx
	return j.store.Entries(sessionID, filter)
}

// SessionTokens 返回会话累计 token 估算
// SessionTokens returns the session's cumulative token estimate
func (j *Journal) SessionTokens(ctx context.Context, sessionID string) (int, error) {
	_ = ctx
	sess, err := j.store.LoadSession(sessionID)
	if err != nil {
		return 0, err
	}
	return sess.TokenEstimate, nil
}

// IsApproachingLimit 判断累计 token 是否达到调用方给定的阈值
// IsApproachingLimit reports whether cumulative tokens reached the
// caller-supplied threshold
func (j *Journal) IsApproachingLimit(ctx context.Context, sessionID string, threshold int) (bool, error) {
	if threshold <= 0 {
		return false, fmt.Errorf("threshold %d must be positive", threshold)
	}
	tokens, err := j.SessionTokens(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return tokens >= threshold, nil
}

// Subscribe 订阅会话事件 / Subscribe to a session's events
func (j *Journal) Subscribe(sessionID, observerID string) <-chan hub.Event {
	return j.hub.Subscribe(sessionID, observerID)
}

// Unsubscribe 退订 / Unsubscribe from a session
func (j *Journal) Unsubscribe(sessionID, observerID string) {
	j.hub.Unsubscribe(sessionID, observerID)
}

// UnsubscribeAll 退订观察者的全部订阅 / Drop every subscription of an observer
func (j *Journal) UnsubscribeAll(observerID string) {
	j.hub.UnsubscribeAll(observerID)
}

// Hub 暴露底层分发器 (只读用途: 计数、观察者数)
// Hub exposes the underlying fan-out (read-only uses: counters, observer
// counts)
func (j *Journal) Hub() *hub.Hub {
	return j.hub
}
