package verify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/match/pinyin"
	"github.com/MrWong99/feihua/internal/verify"
)

var jingYeSi = corpus.Poem{
	ID:      "p1",
	Title:   "静夜思",
	Author:  "李白",
	Content: "床前明月光，疑是地上霜。举头望明月，低头思故乡。",
}

// countingStore wraps a Store and counts queries, so tests can assert that
// pre-checks short-circuit before any corpus access.
type countingStore struct {
	corpus.Store
	contentCalls int
	charCalls    int
}

func (s *countingStore) FindByContent(ctx context.Context, substring string) (*corpus.Poem, error) {
	s.contentCalls++
	return s.Store.FindByContent(ctx, substring)
}

func (s *countingStore) FindByCharacter(ctx context.Context, char string, limit int) ([]corpus.Poem, error) {
	s.charCalls++
	return s.Store.FindByCharacter(ctx, char, limit)
}

// failingStore simulates a corpus outage.
type failingStore struct {
	corpus.Store
}

func (failingStore) FindByContent(context.Context, string) (*corpus.Poem, error) {
	return nil, corpus.ErrUnavailable
}

func newEngine(poems ...corpus.Poem) *verify.Engine {
	return verify.NewEngine(corpus.NewMemStore(poems), pinyin.New())
}

func TestVerify_Exact(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	res, err := e.Verify(context.Background(), "床前明月光", "明", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.Exact {
		t.Fatalf("Kind = %v, want Exact", res.Kind)
	}
	if res.Poem == nil || res.Poem.ID != "p1" {
		t.Errorf("Poem = %+v, want p1", res.Poem)
	}
}

func TestVerify_AlreadyUsedBeatsExact(t *testing.T) {
	t.Parallel()

	store := &countingStore{Store: corpus.NewMemStore([]corpus.Poem{jingYeSi})}
	e := verify.NewEngine(store, pinyin.New())

	used := []string{"床前明月光"}
	res, err := e.Verify(context.Background(), "床前明月光", "明", used)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.None || res.Reason != verify.ReasonAlreadyUsed {
		t.Errorf("got Kind=%v Reason=%q, want None/already_used", res.Kind, res.Reason)
	}
	if store.contentCalls != 0 || store.charCalls != 0 {
		t.Errorf("used-verse rejection issued %d+%d corpus queries, want 0",
			store.contentCalls, store.charCalls)
	}
}

func TestVerify_UsedComparisonIsNormalized(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	// The used entry carries trailing punctuation; the rejection must still
	// fire on normalized equality.
	used := []string{"床前明月光。"}
	res, err := e.Verify(context.Background(), "床前明月光", "明", used)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Reason != verify.ReasonAlreadyUsed {
		t.Errorf("Reason = %q, want already_used", res.Reason)
	}
}

func TestVerify_Homophone(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	// 悦 is a tone-free homophone of 月 (both "yue").
	res, err := e.Verify(context.Background(), "床前明悦光", "明", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.Homophone {
		t.Fatalf("Kind = %v, want Homophone", res.Kind)
	}
	if res.Verse != "床前明月光" {
		t.Errorf("Verse = %q, want %q", res.Verse, "床前明月光")
	}
	if len(res.Differences) != 1 {
		t.Fatalf("Differences = %v, want exactly one entry", res.Differences)
	}
	d := res.Differences[0]
	if d.Position != 3 || d.Input != "悦" || d.Correct != "月" {
		t.Errorf("Differences[0] = %+v, want {3 悦 月}", d)
	}
}

func TestVerify_Fuzzy(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	// 白 ("bai") is not a homophone of 明 ("ming"), so the phonetic check
	// fails and edit distance 1 classifies the submission as Fuzzy.
	res, err := e.Verify(context.Background(), "床前白月光", "月", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.Fuzzy {
		t.Fatalf("Kind = %v, want Fuzzy", res.Kind)
	}
	if res.Verse != "床前明月光" {
		t.Errorf("Verse = %q, want %q", res.Verse, "床前明月光")
	}
	if len(res.Differences) != 1 || res.Differences[0].Position != 2 {
		t.Errorf("Differences = %v, want one entry at position 2", res.Differences)
	}
}

func TestVerify_DistanceZeroNeverFuzzy(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	// The submission's trailing punctuation defeats the raw substring tier,
	// but after normalization it equals the canonical verse (distance 0).
	// Equal strings share a phonetic key, so this classifies as Homophone —
	// the Fuzzy kind is reserved for distance exactly 1.
	res, err := e.Verify(context.Background(), "床前明月光。", "明", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind == verify.Fuzzy {
		t.Fatal("distance-0 submission classified as Fuzzy")
	}
	if res.Kind != verify.Homophone {
		t.Fatalf("Kind = %v, want Homophone", res.Kind)
	}
	if len(res.Differences) != 0 {
		t.Errorf("Differences = %v, want none for identical normalized text", res.Differences)
	}
}

func TestVerify_MissingTargetCharShortCircuits(t *testing.T) {
	t.Parallel()

	store := &countingStore{Store: corpus.NewMemStore([]corpus.Poem{jingYeSi})}
	e := verify.NewEngine(store, pinyin.New())

	res, err := e.Verify(context.Background(), "床前明月光", "花", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.None || res.Reason != verify.ReasonMissingTargetChar {
		t.Errorf("got Kind=%v Reason=%q, want None/missing_target_char", res.Kind, res.Reason)
	}
	if store.contentCalls != 0 || store.charCalls != 0 {
		t.Errorf("missing-target rejection issued %d+%d corpus queries, want 0",
			store.contentCalls, store.charCalls)
	}
}

func TestVerify_LengthPruneSkipsDistantVerses(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	// Two-rune submission containing the target char: every verse in the
	// corpus is five runes, outside the ±2 window, so nothing can match.
	res, err := e.Verify(context.Background(), "明亮", "明", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.None || res.Reason != verify.ReasonNotFound {
		t.Errorf("got Kind=%v Reason=%q, want None/not_found", res.Kind, res.Reason)
	}
}

func TestVerify_FirstQualifyingCandidateWins(t *testing.T) {
	t.Parallel()

	// Both poems contain a verse at edit distance 1 from the submission.
	// Candidate-list order decides; the engine must not search for the
	// globally closest match.
	first := corpus.Poem{ID: "a", Title: "甲", Author: "某", Content: "明月出天山，苍茫云海间。"}
	second := corpus.Poem{ID: "b", Title: "乙", Author: "某", Content: "明月出天海，另外一句诗。"}
	e := newEngine(first, second)

	res, err := e.Verify(context.Background(), "明月出天空", "明", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Kind != verify.Fuzzy {
		t.Fatalf("Kind = %v, want Fuzzy", res.Kind)
	}
	if res.Poem.ID != "a" {
		t.Errorf("matched poem %q, want first candidate %q", res.Poem.ID, "a")
	}
}

func TestVerify_CorpusErrorPropagates(t *testing.T) {
	t.Parallel()

	e := verify.NewEngine(failingStore{}, pinyin.New())

	_, err := e.Verify(context.Background(), "床前明月光", "明", nil)
	if !errors.Is(err, corpus.ErrUnavailable) {
		t.Fatalf("err = %v, want corpus.ErrUnavailable", err)
	}
}

func TestVerify_InputValidation(t *testing.T) {
	t.Parallel()

	e := newEngine(jingYeSi)

	for _, tc := range []struct{ submission, char string }{
		{"", "明"},
		{"床前明月光", ""},
	} {
		if _, err := e.Verify(context.Background(), tc.submission, tc.char, nil); !errors.Is(err, verify.ErrInput) {
			t.Errorf("Verify(%q, %q): err = %v, want ErrInput", tc.submission, tc.char, err)
		}
	}
}
