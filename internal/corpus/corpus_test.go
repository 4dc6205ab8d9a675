package corpus_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/MrWong99/feihua/internal/corpus"
)

var testPoems = []corpus.Poem{
	{ID: "p1", Title: "静夜思", Author: "李白", Content: "床前明月光，疑是地上霜。举头望明月，低头思故乡。"},
	{ID: "p2", Title: "春晓", Author: "孟浩然", Content: "春眠不觉晓，处处闻啼鸟。夜来风雨声，花落知多少。"},
	{ID: "p3", Title: "望庐山瀑布", Author: "李白", Content: "日照香炉生紫烟，遥看瀑布挂前川。飞流直下三千尺，疑是银河落九天。"},
}

func TestPoem_Verses(t *testing.T) {
	t.Parallel()

	p := testPoems[0]
	want := []string{"床前明月光", "疑是地上霜", "举头望明月", "低头思故乡"}
	if got := p.Verses(); !reflect.DeepEqual(got, want) {
		t.Errorf("Verses() = %v, want %v", got, want)
	}
}

func TestMemStore_FindByContent(t *testing.T) {
	t.Parallel()

	s := corpus.NewMemStore(testPoems)
	ctx := context.Background()

	p, err := s.FindByContent(ctx, "床前明月光")
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if p == nil || p.ID != "p1" {
		t.Errorf("FindByContent(床前明月光) = %+v, want poem p1", p)
	}

	p, err = s.FindByContent(ctx, "不存在的诗句")
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if p != nil {
		t.Errorf("FindByContent(miss) = %+v, want nil", p)
	}

	// Empty substring never matches.
	p, err = s.FindByContent(ctx, "")
	if err != nil || p != nil {
		t.Errorf("FindByContent(\"\") = %+v, %v; want nil, nil", p, err)
	}
}

func TestMemStore_FindByCharacter(t *testing.T) {
	t.Parallel()

	s := corpus.NewMemStore(testPoems)
	ctx := context.Background()

	poems, err := s.FindByCharacter(ctx, "疑", 10)
	if err != nil {
		t.Fatalf("FindByCharacter: %v", err)
	}
	if len(poems) != 2 {
		t.Fatalf("FindByCharacter(疑) returned %d poems, want 2", len(poems))
	}

	// Limit caps the result.
	poems, err = s.FindByCharacter(ctx, "疑", 1)
	if err != nil {
		t.Fatalf("FindByCharacter: %v", err)
	}
	if len(poems) != 1 {
		t.Errorf("FindByCharacter(疑, limit=1) returned %d poems, want 1", len(poems))
	}
}

func TestMemStore_FindByAuthor(t *testing.T) {
	t.Parallel()

	s := corpus.NewMemStore(testPoems)

	poems, err := s.FindByAuthor(context.Background(), "李白", 10)
	if err != nil {
		t.Fatalf("FindByAuthor: %v", err)
	}
	if len(poems) != 2 {
		t.Errorf("FindByAuthor(李白) returned %d poems, want 2", len(poems))
	}
}

func TestMemStore_RandomPoems(t *testing.T) {
	t.Parallel()

	s := corpus.NewMemStore(testPoems)

	poems, err := s.RandomPoems(context.Background(), 2)
	if err != nil {
		t.Fatalf("RandomPoems: %v", err)
	}
	if len(poems) != 2 {
		t.Errorf("RandomPoems(2) returned %d poems, want 2", len(poems))
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	const seed = `
poems:
  - id: tang-001
    title: 静夜思
    author: 李白
    content: 床前明月光，疑是地上霜。
  - title: 春晓
    author: 孟浩然
    content: 春眠不觉晓，处处闻啼鸟。
`
	poems, err := corpus.LoadYAML(strings.NewReader(seed))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(poems) != 2 {
		t.Fatalf("LoadYAML returned %d poems, want 2", len(poems))
	}
	if poems[0].ID != "tang-001" {
		t.Errorf("poems[0].ID = %q, want %q", poems[0].ID, "tang-001")
	}
	if poems[1].ID == "" {
		t.Error("poems[1].ID should be generated when omitted")
	}
}

func TestLoadYAML_MissingContent(t *testing.T) {
	t.Parallel()

	const seed = `
poems:
  - title: 无内容
    author: 无名氏
`
	if _, err := corpus.LoadYAML(strings.NewReader(seed)); err == nil {
		t.Fatal("LoadYAML should reject a poem without content")
	}
}

func TestLoadYAML_UnknownField(t *testing.T) {
	t.Parallel()

	const seed = `
poems:
  - title: 静夜思
    content: 床前明月光。
    dynasty: 唐
`
	if _, err := corpus.LoadYAML(strings.NewReader(seed)); err == nil {
		t.Fatal("LoadYAML should reject unknown fields")
	}
}
