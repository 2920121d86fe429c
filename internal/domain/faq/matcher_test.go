package faq

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

func newTestMatcher(t *testing.T, embedder *stubEmbedder) (*Matcher, Store, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	store := NewStore(repo, embedder, discardLogger())
	matcher := NewMatcher(MatcherConfig{Threshold: 0.6, FallbackAnswer: "نمی‌دانم"}, store, embedder, discardLogger())
	return matcher, store, repo
}

func TestMatcherExactQuestionMatches(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()

	entry, err := store.Upsert(ctx, UpsertRequest{Question: "ساعت کاری چیست", Answer: "9 تا 5"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "ساعت کاری چیست")
	require.NoError(t, err)
	require.True(t, result.Matched())
	require.Equal(t, entry.ID, *result.FAQID)
	require.Equal(t, "9 تا 5", result.Answer)
	require.InDelta(t, 1.0, result.Confidence, 1e-6)
	require.Equal(t, SourceFAQ, result.Source)
}

func TestMatcherEmptyCatalogFallsBack(t *testing.T) {
	matcher, _, _ := newTestMatcher(t, &stubEmbedder{})

	result, err := matcher.Match(context.Background(), "هر سوالی")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Zero(t, result.Confidence)
	require.Equal(t, "نمی‌دانم", result.Answer)
	require.Equal(t, SourceFallback, result.Source)
	require.Equal(t, ReasonEmptyCatalog, result.Reason)
}

func TestMatcherBelowThresholdKeepsObservedConfidence(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"الف": {1, 0},
		"ب":  {1, 1.5},
	}}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "الف", Answer: "a"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "ب")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Equal(t, "نمی‌دانم", result.Answer)
	require.Equal(t, ReasonBelowThreshold, result.Reason)
	require.Greater(t, result.Confidence, 0.0)
	require.Less(t, result.Confidence, 0.6)
}

func TestMatcherZeroThresholdAlwaysAnswers(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"الف": {1, 0},
		"ب":  {0, 1},
	}}
	store := NewStore(newStubRepo(), embedder, discardLogger())
	matcher := NewMatcher(MatcherConfig{Threshold: 0}, store, embedder, discardLogger())
	require.Zero(t, matcher.Threshold())

	ctx := context.Background()
	entry, err := store.Upsert(ctx, UpsertRequest{Question: "الف", Answer: "a"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "ب")
	require.NoError(t, err)
	require.NotNil(t, result.FAQID)
	require.Equal(t, entry.ID, *result.FAQID)
	require.Equal(t, SourceFAQ, result.Source)
	require.Zero(t, result.Confidence)
}

func TestMatcherConfigOutOfRangeThresholdUsesDefault(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.5, math.NaN()} {
		cfg := MatcherConfig{Threshold: threshold}.withDefaults()
		require.Equal(t, DefaultThreshold, cfg.Threshold)
		require.Equal(t, DefaultFallbackAnswer, cfg.FallbackAnswer)
	}
	require.Equal(t, 1.0, MatcherConfig{Threshold: 1}.withDefaults().Threshold)
}

func TestMatcherNegativeSimilarityClampsToZero(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"بالا":  {1, 1},
		"پایین": {-1, -1},
	}}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "بالا", Answer: "up"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "پایین")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Zero(t, result.Confidence)
}

func TestMatcherTiesResolveToLowestID(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"اول":  {1, 0, 0},
		"دوم":  {1, 0, 0},
		"سوال": {1, 0, 0},
	}}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	first, err := store.Upsert(ctx, UpsertRequest{Question: "اول", Answer: "1"})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, UpsertRequest{Question: "دوم", Answer: "2"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result, err := matcher.Match(ctx, "سوال")
		require.NoError(t, err)
		require.Equal(t, first.ID, *result.FAQID)
		require.Equal(t, "1", result.Answer)
	}
}

func TestMatcherIsDeterministic(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()
	for _, q := range []string{"ساعت کاری", "آدرس دفتر", "هزینه ارسال"} {
		_, err := store.Upsert(ctx, UpsertRequest{Question: q, Answer: q})
		require.NoError(t, err)
	}

	first, err := matcher.Match(ctx, "آدرس دفتر کجاست")
	require.NoError(t, err)
	second, err := matcher.Match(ctx, "آدرس دفتر کجاست")
	require.NoError(t, err)
	require.Equal(t, first.FAQID, second.FAQID)
	require.InDelta(t, first.Confidence, second.Confidence, 1e-12)
}

func TestMatcherResultHonoursThreshold(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()
	for _, q := range []string{"ساعت کاری", "آدرس دفتر", "هزینه ارسال", "رمز عبور"} {
		_, err := store.Upsert(ctx, UpsertRequest{Question: q, Answer: "answer " + q})
		require.NoError(t, err)
	}

	messages := []string{"ساعت", "آدرس کجاست", "ارسال رایگان است؟", "فراموشی رمز", "hello", "۱۲۳"}
	for _, msg := range messages {
		result, err := matcher.Match(ctx, msg)
		require.NoError(t, err)
		if result.FAQID != nil {
			require.GreaterOrEqual(t, result.Confidence, matcher.Threshold())
			require.Equal(t, SourceFAQ, result.Source)
		} else {
			require.Equal(t, "نمی‌دانم", result.Answer)
			require.Equal(t, SourceFallback, result.Source)
		}
		require.GreaterOrEqual(t, result.Confidence, 0.0)
		require.LessOrEqual(t, result.Confidence, 1.0)
	}
}

func TestMatcherSeesEditedQuestion(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"قدیمی": {1, 0},
		"جدید":  {0, 1},
	}}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	entry, err := store.Upsert(ctx, UpsertRequest{Question: "قدیمی", Answer: "پاسخ"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "قدیمی")
	require.NoError(t, err)
	require.NotNil(t, result.FAQID)

	question := "جدید"
	_, err = store.Update(ctx, entry.ID, UpdateRequest{Question: &question})
	require.NoError(t, err)

	result, err = matcher.Match(ctx, "قدیمی")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)

	result, err = matcher.Match(ctx, "جدید")
	require.NoError(t, err)
	require.Equal(t, entry.ID, *result.FAQID)
}

func TestMatcherSkipsInactiveEntries(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()
	inactive := false
	_, err := store.Upsert(ctx, UpsertRequest{Question: "پنهان", Answer: "x", Active: &inactive})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "پنهان")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Equal(t, ReasonEmptyCatalog, result.Reason)
}

func TestMatcherEmbeddingFailureFallsBack(t *testing.T) {
	embedder := &stubEmbedder{}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "سلام", Answer: "درود"})
	require.NoError(t, err)

	embedder.err = errors.New("quota exceeded")
	result, err := matcher.Match(ctx, "سلام")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Zero(t, result.Confidence)
	require.Equal(t, ReasonEmbeddingFailed, result.Reason)
}

func TestMatcherSkipsMismatchedDimensions(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"کوتاه": {1, 0},
		"بلند":  {1, 0, 0},
	}}
	matcher, store, _ := newTestMatcher(t, embedder)
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "کوتاه", Answer: "x"})
	require.NoError(t, err)

	result, err := matcher.Match(ctx, "بلند")
	require.NoError(t, err)
	require.Nil(t, result.FAQID)
	require.Equal(t, ReasonNoComparable, result.Reason)
}

func TestMatcherCatalogFailureIsPersistenceError(t *testing.T) {
	matcher, _, repo := newTestMatcher(t, &stubEmbedder{})
	repo.err = errors.New("db down")

	_, err := matcher.Match(context.Background(), "سلام")
	require.True(t, apperrors.IsCode(err, apperrors.CodePersistence))
}

func TestMatcherReusesSnapshotUntilVersionChanges(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "سلام", Answer: "درود"})
	require.NoError(t, err)

	require.NoError(t, matcher.Warm(ctx))
	before := matcher.snapshot.Load()
	_, err = matcher.Match(ctx, "سلام")
	require.NoError(t, err)
	require.Same(t, before, matcher.snapshot.Load())

	_, err = store.Upsert(ctx, UpsertRequest{Question: "خداحافظ", Answer: "بدرود"})
	require.NoError(t, err)
	_, err = matcher.Match(ctx, "سلام")
	require.NoError(t, err)
	require.NotSame(t, before, matcher.snapshot.Load())
}

func TestMatcherConcurrentMatchesDuringUpdates(t *testing.T) {
	matcher, store, _ := newTestMatcher(t, &stubEmbedder{})
	ctx := context.Background()
	_, err := store.Upsert(ctx, UpsertRequest{Question: "سلام", Answer: "درود"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				result, err := matcher.Match(ctx, "سلام")
				if err != nil || result.Answer == "" {
					t.Errorf("unexpected result %+v err=%v", result, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		_, err := store.Upsert(ctx, UpsertRequest{Question: "سلام", Answer: "درود"})
		require.NoError(t, err)
	}
	wg.Wait()
}
