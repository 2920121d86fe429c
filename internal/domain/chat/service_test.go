package chat

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
	"github.com/yanqian/persian-faqbot/pkg/metrics"
)

func TestChatMatchedAnswerIsLogged(t *testing.T) {
	env := newTestEnv()
	faqID := int64(1)
	env.matcher.result = faq.MatchResult{FAQID: &faqID, Answer: "9 تا 5", Confidence: 0.98, Source: faq.SourceFAQ, Normalized: "ساعت کاری چیست"}

	resp, err := env.svc.Chat(context.Background(), Request{Message: "ساعت کاری چیست", RequestID: "req-1"})
	require.NoError(t, err)
	require.Equal(t, "9 تا 5", resp.Answer)
	require.Equal(t, 0.98, resp.Confidence)
	require.Equal(t, faqID, *resp.MatchedFAQID)
	require.NotNil(t, resp.LogID)
	require.Nil(t, resp.DebugInfo)

	entries := env.repo.snapshot()
	require.Len(t, entries, 1)
	require.Equal(t, "ساعت کاری چیست", entries[0].UserText)
	require.Equal(t, "9 تا 5", entries[0].Answer)
	require.Equal(t, faqID, *entries[0].MatchedFAQID)
	require.Equal(t, "faq", entries[0].Source)
	require.Equal(t, "req-1", entries[0].RequestID)
	require.Equal(t, len([]rune("ساعت کاری چیست")), entries[0].TokensIn)
}

func TestChatFallbackIsStillLogged(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "نمی‌دانم", Confidence: 0, Source: faq.SourceFallback, Reason: faq.ReasonEmptyCatalog}

	resp, err := env.svc.Chat(context.Background(), Request{Message: "هر سوالی", Debug: true})
	require.NoError(t, err)
	require.Nil(t, resp.MatchedFAQID)
	require.Zero(t, resp.Confidence)
	require.Equal(t, "نمی‌دانم", resp.Answer)
	require.NotNil(t, resp.DebugInfo)
	require.Equal(t, faq.ReasonEmptyCatalog, resp.DebugInfo.Reason)
	require.True(t, resp.DebugInfo.Logged)

	entries := env.repo.snapshot()
	require.Len(t, entries, 1)
	require.Nil(t, entries[0].MatchedFAQID)
	require.Equal(t, "fallback", entries[0].Source)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	env := newTestEnv()

	for _, msg := range []string{"", "   ", "\t\n"} {
		_, err := env.svc.Chat(context.Background(), Request{Message: msg})
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "message %q", msg)
	}
	require.Empty(t, env.repo.snapshot())
	require.Zero(t, env.matcher.calls)
}

func TestChatPunctuationOnlyMessageIsLoggedFallback(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "نمی‌دانم", Source: faq.SourceFallback, Reason: faq.ReasonEmptyMessage}

	for _, msg := range []string{"؟", "👍", "!!"} {
		resp, err := env.svc.Chat(context.Background(), Request{Message: msg, Debug: true})
		require.NoError(t, err, "message %q", msg)
		require.Equal(t, "نمی‌دانم", resp.Answer)
		require.Equal(t, faq.ReasonEmptyMessage, resp.DebugInfo.Reason)
		require.NotNil(t, resp.LogID)
	}
	require.Equal(t, 3, env.matcher.calls)
	entries := env.repo.snapshot()
	require.Len(t, entries, 3)
	require.Equal(t, "👍", entries[1].UserText)
}

func TestChatMatcherFailureIsUnavailable(t *testing.T) {
	env := newTestEnv()
	env.matcher.err = apperrors.Wrap(apperrors.CodePersistence, "db down", errors.New("dial tcp"))

	_, err := env.svc.Chat(context.Background(), Request{Message: "سلام"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeFAQUnavailable))
	require.Empty(t, env.repo.snapshot())
	// the HTTP layer reports returned server errors
	require.Empty(t, env.reporter.errors())
}

func TestChatLogFailureStillAnswersAndSpools(t *testing.T) {
	env := newTestEnv()
	env.repo.fail(errors.New("connection reset"))
	env.matcher.result = faq.MatchResult{Answer: "درود", Confidence: 0.9, Source: faq.SourceFAQ}

	resp, err := env.svc.Chat(context.Background(), Request{Message: "سلام", RequestID: "req-9"})
	require.NoError(t, err)
	require.Equal(t, "درود", resp.Answer)
	require.Nil(t, resp.LogID)
	require.Len(t, env.reporter.errors(), 1)
	require.Equal(t, []string{"chatlog"}, env.reporter.breadcrumbs())
	require.Len(t, env.spool.items, 1)
	require.Equal(t, "req-9", (<-env.spool.items).RequestID)
}

func TestChatSlowSpoolDoesNotHoldResponse(t *testing.T) {
	env := newTestEnv()
	env.repo.fail(errors.New("connection reset"))
	blocking := &blockingSpool{delay: 3 * time.Second}
	env.svc.spool = blocking
	env.matcher.result = faq.MatchResult{Answer: "درود", Source: faq.SourceFallback}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	started := time.Now()
	resp, err := env.svc.Chat(ctx, Request{Message: "سلام"})
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.Equal(t, "درود", resp.Answer)
	require.Nil(t, resp.LogID)
	// append and push each get one LogTimeout (100ms)
	require.Less(t, elapsed, time.Second)
	require.ErrorIs(t, blocking.lastErr(), context.DeadlineExceeded)
	require.Len(t, env.reporter.errors(), 2)
}

func TestReplaySpoolBoundsRespool(t *testing.T) {
	env := newTestEnv()
	env.repo.fail(errors.New("still down"))
	blocking := &blockingSpool{delay: 3 * time.Second, pending: []chatlog.Draft{{UserText: "سلام"}}}
	env.svc.spool = blocking

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.svc.ReplaySpool(ctx) }()

	require.Eventually(t, func() bool {
		return errors.Is(blocking.lastErr(), context.DeadlineExceeded)
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestStatsReportsSpoolBacklog(t *testing.T) {
	env := newTestEnv()
	env.spool.items <- chatlog.Draft{UserText: "a"}
	env.spool.items <- chatlog.Draft{UserText: "b"}

	stats, err := env.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Spooled)

	env.spool.lenErr = errors.New("valkey down")
	stats, err = env.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Spooled)
}

func TestLogsReturnsPage(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "درود", Source: faq.SourceFallback}
	for i := 0; i < 3; i++ {
		_, err := env.svc.Chat(context.Background(), Request{Message: "سلام"})
		require.NoError(t, err)
	}

	page, err := env.svc.Logs(context.Background(), chatlog.Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(3), page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, 1, page.Page)
}

func TestChatLogsEvenWhenClientCancels(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "درود", Source: faq.SourceFallback}
	ctx, cancel := context.WithCancel(context.Background())
	env.matcher.onMatch = cancel

	_, err := env.svc.Chat(ctx, Request{Message: "سلام"})
	require.NoError(t, err)
	require.Len(t, env.repo.snapshot(), 1)
}

func TestChatConcurrentRequestsEachLoggedOnce(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "درود", Source: faq.SourceFallback}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Chat(context.Background(), Request{Message: "سلام"})
			if err != nil {
				t.Errorf("chat failed: %v", err)
			}
		}()
	}
	wg.Wait()

	entries := env.repo.snapshot()
	require.Len(t, entries, 20)
	seen := make(map[int64]struct{})
	for _, entry := range entries {
		_, dup := seen[entry.ID]
		require.False(t, dup)
		seen[entry.ID] = struct{}{}
	}
}

func TestReplaySpoolAppendsDrafts(t *testing.T) {
	env := newTestEnv()
	env.spool.items <- chatlog.Draft{UserText: "سلام", Answer: "درود", RequestID: "late"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.svc.ReplaySpool(ctx) }()

	require.Eventually(t, func() bool { return len(env.repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, "late", env.repo.snapshot()[0].RequestID)
}

func TestReplaySpoolRequeuesOnFailure(t *testing.T) {
	env := newTestEnv()
	env.repo.fail(errors.New("still down"))
	env.spool.items <- chatlog.Draft{UserText: "سلام", Answer: "درود"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.svc.ReplaySpool(ctx) }()

	require.Eventually(t, func() bool { return env.repo.attempts() >= 1 }, time.Second, 5*time.Millisecond)
	env.repo.fail(nil)
	require.Eventually(t, func() bool { return len(env.repo.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestExportLogsWritesCSV(t *testing.T) {
	env := newTestEnv()
	env.matcher.result = faq.MatchResult{Answer: "درود, دوست من", Source: faq.SourceFallback}
	_, err := env.svc.Chat(context.Background(), Request{Message: "سلام"})
	require.NoError(t, err)

	result, err := env.svc.ExportLogs(context.Background(), chatlog.Query{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.True(t, strings.HasPrefix(result.Key, defaultExportPrefix))
	require.True(t, strings.HasSuffix(result.Key, ".csv"))

	data := env.storage.objects[result.Key]
	require.Equal(t, int64(len(data)), result.Size)
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, exportHeader, records[0])
	require.Equal(t, "درود, دوست من", records[1][3])
}

func TestExportLogsStorageFailure(t *testing.T) {
	env := newTestEnv()
	env.storage.err = errors.New("bucket missing")

	_, err := env.svc.ExportLogs(context.Background(), chatlog.Query{})
	require.True(t, apperrors.IsCode(err, apperrors.CodePersistence))
}

type testEnv struct {
	svc      *service
	matcher  *stubMatcher
	repo     *memoryLogRepo
	spool    *chanSpool
	reporter *recordingReporter
	storage  *memoryStorage
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		matcher:  &stubMatcher{},
		repo:     &memoryLogRepo{},
		spool:    &chanSpool{items: make(chan chatlog.Draft, 8)},
		reporter: &recordingReporter{},
		storage:  &memoryStorage{objects: make(map[string][]byte)},
	}
	cfg := Config{LogTimeout: 100 * time.Millisecond, ReplayPollWait: 10 * time.Millisecond, ReplayBackoff: 5 * time.Millisecond, ReplayMaxBackoff: 20 * time.Millisecond}
	env.svc = newService(cfg, env.matcher, chatlog.NewLog(env.repo, logger), env.spool, runeCounter{}, env.reporter, env.storage, logger, nil)
	return env
}

type stubMatcher struct {
	mu      sync.Mutex
	result  faq.MatchResult
	err     error
	calls   int
	onMatch func()
}

func (s *stubMatcher) Match(context.Context, string) (faq.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.onMatch != nil {
		s.onMatch()
	}
	return s.result, s.err
}

func (s *stubMatcher) Threshold() float64 { return 0.6 }

type memoryLogRepo struct {
	mu      sync.Mutex
	entries []chatlog.Entry
	err     error
	tries   int
}

func (r *memoryLogRepo) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *memoryLogRepo) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tries
}

func (r *memoryLogRepo) snapshot() []chatlog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chatlog.Entry(nil), r.entries...)
}

func (r *memoryLogRepo) Append(ctx context.Context, draft chatlog.Draft) (chatlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tries++
	if err := ctx.Err(); err != nil {
		return chatlog.Entry{}, err
	}
	if r.err != nil {
		return chatlog.Entry{}, r.err
	}
	entry := chatlog.NewEntry(int64(len(r.entries)+1), draft, time.Now().UTC())
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *memoryLogRepo) Recent(_ context.Context, query chatlog.Query) ([]chatlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatlog.Entry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0 && len(out) < query.Limit; i-- {
		if query.Matches(r.entries[i]) {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memoryLogRepo) Count(_ context.Context, query chatlog.Query) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, entry := range r.entries {
		if query.Matches(entry) {
			total++
		}
	}
	return total, nil
}

func (r *memoryLogRepo) Stats(context.Context) (chatlog.Stats, error) {
	return chatlog.Stats{}, nil
}

type chanSpool struct {
	items  chan chatlog.Draft
	lenErr error
}

func (s *chanSpool) Len(context.Context) (int64, error) {
	if s.lenErr != nil {
		return 0, s.lenErr
	}
	return int64(len(s.items)), nil
}

func (s *chanSpool) Push(_ context.Context, draft chatlog.Draft) error {
	select {
	case s.items <- draft:
		return nil
	default:
		return errors.New("spool full")
	}
}

func (s *chanSpool) Pop(ctx context.Context, wait time.Duration) (chatlog.Draft, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case draft := <-s.items:
		return draft, true, nil
	case <-timer.C:
		return chatlog.Draft{}, false, nil
	case <-ctx.Done():
		return chatlog.Draft{}, false, ctx.Err()
	}
}

// blockingSpool stalls every Push for delay unless ctx ends first.
type blockingSpool struct {
	delay   time.Duration
	mu      sync.Mutex
	pending []chatlog.Draft
	err     error
}

func (s *blockingSpool) Push(ctx context.Context, _ chatlog.Draft) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.err = ctx.Err()
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *blockingSpool) Pop(ctx context.Context, wait time.Duration) (chatlog.Draft, bool, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		draft := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return draft, true, nil
	}
	s.mu.Unlock()
	select {
	case <-time.After(wait):
		return chatlog.Draft{}, false, nil
	case <-ctx.Done():
		return chatlog.Draft{}, false, ctx.Err()
	}
}

func (s *blockingSpool) Len(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pending)), nil
}

func (s *blockingSpool) lastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type runeCounter struct{}

func (runeCounter) Usage(prompt, completion string) metrics.TokenUsage {
	in, out := len([]rune(prompt)), len([]rune(completion))
	return metrics.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

type recordingReporter struct {
	mu     sync.Mutex
	errs   []error
	crumbs []string
}

func (r *recordingReporter) Breadcrumb(_ context.Context, category, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crumbs = append(r.crumbs, category)
}

func (r *recordingReporter) breadcrumbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.crumbs...)
}

func (r *recordingReporter) CaptureError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type memoryStorage struct {
	objects map[string][]byte
	err     error
}

func (m *memoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	if m.err != nil {
		return StoredObject{}, m.err
	}
	m.objects[key] = append([]byte(nil), data...)
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}
