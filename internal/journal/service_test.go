package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"journal/internal/hub"
	"journal/internal/record"
	"journal/internal/store"
	"journal/internal/summarize"
	"journal/internal/token"
)

// scriptedSummarizer 可编程的摘要桩 / scriptedSummarizer is a programmable stub
type scriptedSummarizer struct {
	mu     sync.Mutex
	result summarize.Result
	err    error
	calls  int
}

func newScriptedSummarizer() *scriptedSummarizer {
	return &scriptedSummarizer{
		result: summarize.Result{
			Summary:        "agent made steady progress on the task",
			KeyDecisions:   []string{"serialize appends per session"},
			CurrentState:   "mid-task, tests being added",
			FilesModified:  []string{"internal/store/sqlite.go"},
			PendingActions: []string{"finish the resumption tests"},
		},
	}
}

func (s *scriptedSummarizer) Summarize(_ context.Context, _ []record.Entry, _ *record.Checkpoint) (summarize.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *scriptedSummarizer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *scriptedSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestJournal(t *testing.T, opts Options) (*Journal, *scriptedSummarizer) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	sum := newScriptedSummarizer()
	j := New(st, token.NewHeuristicEstimator(), hub.New(1024), sum, opts)
	t.Cleanup(func() { _ = j.Close() })
	return j, sum
}

// failingAppendStore 可开关的 append 故障注入 / failingAppendStore injects
// switchable append failures
type failingAppendStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (f *failingAppendStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *failingAppendStore) AppendEntry(e record.Entry) (record.Entry, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return record.Entry{}, errors.New("append rejected")
	}
	return f.Store.AppendEntry(e)
}

func mustCreate(t *testing.T, j *Journal, conversationID, prompt string) record.Session {
	t.Helper()
	sess, err := j.CreateSession(context.Background(), conversationID, prompt)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func mustLog(t *testing.T, j *Journal, sessionID string, typ record.EntryType, payload any) record.Entry {
	t.Helper()
	e, err := j.LogEntry(context.Background(), sessionID, typ, payload, record.ImportanceNormal)
	if err != nil {
		t.Fatalf("LogEntry(%s): %v", typ, err)
	}
	return e
}

// --- Session lifecycle ---

func TestCreateSession_EmitsSessionStart(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "Fix bug #42")

	if sess.Status != record.StatusActive {
		t.Fatalf("Status=%q, want active", sess.Status)
	}
	if sess.EntryCount != 1 {
		t.Fatalf("EntryCount=%d, want 1 (session_start)", sess.EntryCount)
	}

	entries, err := j.Entries(context.Background(), sess.ID, store.EntryFilter{})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != record.EntrySessionStart || entries[0].Seq != 1 {
		t.Fatalf("first entry=%+v, want session_start at seq 1", entries[0])
	}
}

func TestCreateSession_ConflictOnSecondActive(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	mustCreate(t, j, "conv_1", "first")

	_, err := j.CreateSession(context.Background(), "conv_1", "second")
	if !errors.Is(err, record.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}
}

func TestCreateSession_ConcurrentExactlyOneWins(t *testing.T) {
	j, _ := newTestJournal(t, Options{})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = j.CreateSession(context.Background(), "conv_race", "go")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, record.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded=%d, want exactly 1", succeeded)
	}
}

func TestGetActiveSession(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "task")

	got, ok, err := j.GetActiveSession(context.Background(), "conv_1")
	if err != nil || !ok || got.ID != sess.ID {
		t.Fatalf("GetActiveSession: ok=%v err=%v id=%q", ok, err, got.ID)
	}

	_, ok, err = j.GetActiveSession(context.Background(), "conv_other")
	if err != nil || ok {
		t.Fatalf("absent conversation: ok=%v err=%v, want false nil", ok, err)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	ctx := context.Background()
	sess := mustCreate(t, j, "conv_1", "task")

	paused, err := j.UpdateStatus(ctx, sess.ID, record.StatusPaused)
	if err != nil {
		t.Fatalf("active->paused: %v", err)
	}
	if paused.Status != record.StatusPaused || paused.CompletedAt != nil {
		t.Fatalf("paused session=%+v", paused)
	}

	resumed, err := j.UpdateStatus(ctx, sess.ID, record.StatusActive)
	if err != nil {
		t.Fatalf("paused->active: %v", err)
	}
	if resumed.Status != record.StatusActive {
		t.Fatalf("Status=%q, want active", resumed.Status)
	}

	done, err := j.UpdateStatus(ctx, sess.ID, record.StatusCompleted)
	if err != nil {
		t.Fatalf("active->completed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("CompletedAt should be set on completion")
	}

	// 终态不可再迁移 / Terminal states reject any transition
	if _, err := j.UpdateStatus(ctx, sess.ID, record.StatusActive); !errors.Is(err, record.ErrInvalidTransition) {
		t.Fatalf("completed->active err=%v, want ErrInvalidTransition", err)
	}
}

func TestUpdateStatus_ActiveToActiveFails(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "task")

	if _, err := j.UpdateStatus(context.Background(), sess.ID, record.StatusActive); !errors.Is(err, record.ErrInvalidTransition) {
		t.Fatalf("active->active err=%v, want ErrInvalidTransition", err)
	}
}

func TestUpdateStatus_PublishesStatusChange(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "task")

	ch := j.Subscribe(sess.ID, "obs_1")
	if _, err := j.UpdateStatus(context.Background(), sess.ID, record.StatusPaused); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != hub.EventStatus || ev.Status != record.StatusPaused {
			t.Fatalf("event=%+v, want paused status change", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no status event delivered")
	}
}

// Scenario C: 完结后追加必须失败 / Appending after completion must fail
func TestLogEntry_AfterCompletion(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "task")

	if _, err := j.UpdateStatus(context.Background(), sess.ID, record.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	_, err := j.LogEntry(context.Background(), sess.ID, record.EntryThinking,
		record.ThinkingContent{Text: "late"}, record.ImportanceNormal)
	if !errors.Is(err, record.ErrSessionNotActive) {
		t.Fatalf("err=%v, want ErrSessionNotActive", err)
	}
}

// session_start 写入失败时会话不得占住 conversation 的活跃槽位
// A failed session_start write must not leave the session holding the
// conversation's active slot
func TestCreateSession_RollsBackOnFirstEntryFailure(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	flaky := &failingAppendStore{Store: st}
	j := New(flaky, token.NewHeuristicEstimator(), hub.New(1024), newScriptedSummarizer(), Options{})
	t.Cleanup(func() { _ = j.Close() })

	flaky.setFail(true)
	if _, err := j.CreateSession(context.Background(), "conv_1", "task"); err == nil {
		t.Fatal("CreateSession should fail when the first entry cannot be written")
	}

	if _, ok, err := j.GetActiveSession(context.Background(), "conv_1"); err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	} else if ok {
		t.Fatal("orphaned session still occupies the active slot")
	}
	sessions, err := j.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != record.StatusCrashed || sessions[0].CompletedAt == nil {
		t.Fatalf("orphan=%+v, want crashed with CompletedAt set", sessions)
	}

	flaky.setFail(false)
	sess := mustCreate(t, j, "conv_1", "task retry")
	if sess.Status != record.StatusActive || sess.EntryCount != 1 {
		t.Fatalf("retry session=%+v, want active with session_start", sess)
	}
}

// --- Append sequencing ---

func TestLogEntry_ConcurrentAppendsStayGapless(t *testing.T) {
	// 上限高于追加总量，避免自动 checkpoint 的标记条目混入计数
	// Ceiling above the append volume so no auto checkpoint marker entry
	// skews the counts
	j, _ := newTestJournal(t, Options{TrimCeiling: 1000})
	sess := mustCreate(t, j, "conv_1", "task")

	const workers = 8
	const perWorker = 20
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := j.LogEntry(context.Background(), sess.ID, record.EntryThinking,
					record.ThinkingContent{Text: fmt.Sprintf("w%d-%d", w, i)}, record.ImportanceNormal)
				if err != nil {
					t.Errorf("LogEntry: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	j.Flush()

	entries, err := j.Entries(context.Background(), sess.ID, store.EntryFilter{})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := workers*perWorker + 1 // +1 session_start
	if len(entries) != want {
		t.Fatalf("len(entries)=%d, want %d", len(entries), want)
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Fatalf("entries[%d].Seq=%d, want %d (gap or duplicate)", i, e.Seq, i+1)
		}
	}

	loaded, err := j.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.EntryCount != want {
		t.Fatalf("EntryCount=%d, want %d", loaded.EntryCount, want)
	}
}

// 小上限下并发追加会触发自动 checkpoint；序列在标记条目混入后仍无缝隙
// With a small ceiling concurrent appends trigger an automatic checkpoint;
// the sequence stays gapless with marker entries in the stream
func TestLogEntry_GaplessAcrossAutoCheckpoint(t *testing.T) {
	j, _ := newTestJournal(t, Options{TrimCeiling: 8, TrimTargetRatio: 0.75})
	sess := mustCreate(t, j, "conv_1", "task")

	const workers = 4
	const perWorker = 15
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := j.LogEntry(context.Background(), sess.ID, record.EntryThinking,
					record.ThinkingContent{Text: fmt.Sprintf("w%d-%d", w, i)}, record.ImportanceNormal)
				if err != nil {
					t.Errorf("LogEntry: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	j.Flush()

	entries, err := j.Entries(context.Background(), sess.ID, store.EntryFilter{})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	markers := 0
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Fatalf("entries[%d].Seq=%d, want %d (gap or duplicate)", i, e.Seq, i+1)
		}
		if e.Type == record.EntryCheckpoint {
			markers++
		}
	}
	if markers == 0 {
		t.Fatal("expected at least one checkpoint marker entry")
	}
	if want := workers*perWorker + 1 + markers; len(entries) != want {
		t.Fatalf("len(entries)=%d, want %d (%d appends + session_start + %d markers)",
			len(entries), want, workers*perWorker, markers)
	}

	loaded, err := j.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.EntryCount != len(entries) {
		t.Fatalf("EntryCount=%d, want %d", loaded.EntryCount, len(entries))
	}
}

// Close 与在途 append 竞争时不得出现 Wait 之后再注册后台任务的情况
// Close racing in-flight appends must never register follow-up work after
// its Wait started
func TestClose_ConcurrentWithAppends(t *testing.T) {
	j, _ := newTestJournal(t, Options{TrimCeiling: 2})
	sess := mustCreate(t, j, "conv_1", "task")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				// 关闭后 append 以错误收场，这里只关心不得崩溃
				// Appends after close just fail; the point is no panic
				_, _ = j.LogEntry(context.Background(), sess.ID, record.EntryThinking,
					record.ThinkingContent{Text: fmt.Sprintf("w%d-%d", w, i)}, record.ImportanceNormal)
			}
		}(w)
	}
	time.Sleep(time.Millisecond)
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	if err := j.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// --- Trimming and checkpoints ---

func TestAutoTrim_FoldsWorkingSet(t *testing.T) {
	j, sum := newTestJournal(t, Options{TrimCeiling: 8, TrimTargetRatio: 0.75})
	sess := mustCreate(t, j, "conv_1", "task")

	// 每次 append 后排空后台工作，使触发点确定
	// Drain follow-up work after each append so the trigger point is exact
	for i := 0; i < 8; i++ {
		mustLog(t, j, sess.ID, record.EntryToolResult, record.ToolResultContent{Tool: "bash", Output: "ok"})
		j.Flush()
	}

	// session_start + 8 appends = 9 > 8: 恰好一次自动 checkpoint
	// Exactly one automatic checkpoint once the working set passed the ceiling
	chain, err := j.Checkpoints(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("checkpoints=%d, want 1", len(chain))
	}
	cp := chain[0]
	if cp.FromSeq != 1 {
		t.Fatalf("FromSeq=%d, want 1", cp.FromSeq)
	}
	// keep = 8*0.75 = 6, 触发时 maxSeq=9 → 折叠到 seq 3
	// keep = 8*0.75 = 6, maxSeq was 9 at trigger time, folds through seq 3
	if cp.ToSeq != 3 {
		t.Fatalf("ToSeq=%d, want 3", cp.ToSeq)
	}
	if sum.callCount() != 1 {
		t.Fatalf("summarizer calls=%d, want 1", sum.callCount())
	}

	// checkpoint 标记条目已追加 / The checkpoint marker entry was appended
	markers, err := j.Entries(context.Background(), sess.ID, store.EntryFilter{
		Types: []record.EntryType{record.EntryCheckpoint},
	})
	if err != nil {
		t.Fatalf("Entries markers: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("checkpoint markers=%d, want 1", len(markers))
	}
}

// Scenario A: 150 条交替工具条目，默认配置下恰好一次自动 checkpoint，
// 裁剪后工作集 ≤ 76
// Scenario A: 150 alternating tool entries, defaults: exactly one automatic
// checkpoint and a post-trim working set of at most 76
func TestAutoTrim_ScenarioA(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	sess := mustCreate(t, j, "conv_1", "Fix bug #42")

	for i := 0; i < 150; i++ {
		if i%2 == 0 {
			mustLog(t, j, sess.ID, record.EntryToolRequest, record.ToolRequestContent{Tool: "bash"})
		} else {
			mustLog(t, j, sess.ID, record.EntryToolResult, record.ToolResultContent{Tool: "bash", Output: "ok"})
		}
	}
	j.Flush()

	chain, err := j.Checkpoints(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("checkpoints=%d, want exactly 1 (second trigger is rate-limited)", len(chain))
	}
	cp := chain[0]

	// 触发时工作集刚超过 100，折叠后保留 75 条 (+1 标记条目) ≤ 76
	// The trigger left 75 unfolded entries (+1 marker), at most 76
	if cp.ToSeq < 26 {
		t.Fatalf("ToSeq=%d: post-trim working set would exceed 76", cp.ToSeq)
	}
	if cp.FromSeq != 1 {
		t.Fatalf("FromSeq=%d, want 1", cp.FromSeq)
	}
}

func TestAutoTrim_SummarizerFailureKeepsEntries(t *testing.T) {
	j, sum := newTestJournal(t, Options{TrimCeiling: 5, TrimTargetRatio: 0.6})
	sum.setErr(errors.New("summarizer offline"))
	sess := mustCreate(t, j, "conv_1", "task")

	for i := 0; i < 10; i++ {
		mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: "step"})
		j.Flush()
	}

	// 裁剪被跳过，条目一个不丢 / Trimming was skipped, no entry was lost
	if _, ok, err := j.LatestCheckpoint(context.Background(), sess.ID); err != nil || ok {
		t.Fatalf("LatestCheckpoint: ok=%v err=%v, want none", ok, err)
	}
	entries, err := j.Entries(context.Background(), sess.ID, store.EntryFilter{})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 11 {
		t.Fatalf("len(entries)=%d, want 11 (all retained)", len(entries))
	}

	// 摘要恢复后，下一次 append 触发重试并成功
	// Once the summarizer recovers, the next append retries and succeeds
	sum.setErr(nil)
	mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: "again"})
	j.Flush()
	if _, ok, err := j.LatestCheckpoint(context.Background(), sess.ID); err != nil || !ok {
		t.Fatalf("LatestCheckpoint after recovery: ok=%v err=%v, want one", ok, err)
	}
}

func TestCreateCheckpoint_ManualCoversAllUnfolded(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	ctx := context.Background()
	sess := mustCreate(t, j, "conv_1", "task")
	for i := 0; i < 4; i++ {
		mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: "step"})
	}
	j.Flush()

	cp, err := j.CreateCheckpoint(ctx, sess.ID, true)
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if cp.FromSeq != 1 || cp.ToSeq != 5 {
		t.Fatalf("coverage %d..%d, want 1..5", cp.FromSeq, cp.ToSeq)
	}

	// 第二段从标记条目之后继续，链无缝无重叠
	// The second span continues past the marker entry, chain stays contiguous
	mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: "more"})
	j.Flush()
	cp2, err := j.CreateCheckpoint(ctx, sess.ID, true)
	if err != nil {
		t.Fatalf("second CreateCheckpoint: %v", err)
	}
	if cp2.FromSeq != cp.ToSeq+1 {
		t.Fatalf("chain gap: first ends %d, second starts %d", cp.ToSeq, cp2.FromSeq)
	}
}

func TestCreateCheckpoint_NothingToFold(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	ctx := context.Background()
	sess := mustCreate(t, j, "conv_1", "task")

	// 暂停会话后 checkpoint 不追加标记条目，未折叠区间可以被清空
	// Paused sessions get no marker entry, so the unfolded span can run dry
	if _, err := j.UpdateStatus(ctx, sess.ID, record.StatusPaused); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := j.CreateCheckpoint(ctx, sess.ID, true); err != nil {
		t.Fatalf("checkpoint over session_start: %v", err)
	}
	if _, err := j.CreateCheckpoint(ctx, sess.ID, true); err == nil {
		t.Fatal("checkpoint with no unfolded entries should fail")
	}
}

func TestCreateCheckpoint_MalformedSummaryNotPersisted(t *testing.T) {
	j, sum := newTestJournal(t, Options{})
	sum.result = summarize.Result{Summary: "", CurrentState: ""}
	sess := mustCreate(t, j, "conv_1", "task")
	mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: "step"})
	j.Flush()

	_, err := j.CreateCheckpoint(context.Background(), sess.ID, true)
	if !errors.Is(err, record.ErrSummarization) {
		t.Fatalf("err=%v, want ErrSummarization", err)
	}
	if _, ok, _ := j.LatestCheckpoint(context.Background(), sess.ID); ok {
		t.Fatal("malformed summary must not persist a checkpoint")
	}
}

func TestLatestCheckpoint_UnknownSession(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	_, _, err := j.LatestCheckpoint(context.Background(), "sess_missing")
	if !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

// --- Token accounting ---

func TestSessionTokens_And_Limit(t *testing.T) {
	j, _ := newTestJournal(t, Options{})
	ctx := context.Background()
	sess := mustCreate(t, j, "conv_1", "task")
	mustLog(t, j, sess.ID, record.EntryThinking, record.ThinkingContent{Text: strings.Repeat("work ", 50)})

	tokens, err := j.SessionTokens(ctx, sess.ID)
	if err != nil || tokens <= 0 {
		t.Fatalf("SessionTokens=%d err=%v, want positive", tokens, err)
	}

	near, err := j.IsApproachingLimit(ctx, sess.ID, tokens)
	if err != nil || !near {
		t.Fatalf("IsApproachingLimit at exact count: near=%v err=%v", near, err)
	}
	far, err := j.IsApproachingLimit(ctx, sess.ID, tokens*100)
	if err != nil || far {
		t.Fatalf("IsApproachingLimit far below threshold: near=%v err=%v", far, err)
	}
	if _, err := j.IsApproachingLimit(ctx, sess.ID, 0); err == nil {
		t.Fatal("non-positive threshold should error")
	}
}
