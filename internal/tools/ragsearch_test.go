package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/settings"
)

type fakeSearcher struct {
	results []knowledge.SearchResult
	err     error
	query   string
	k       int
}

func (f *fakeSearcher) SearchSimilar(_ context.Context, query string, k int) ([]knowledge.SearchResult, error) {
	f.query = query
	f.k = k
	return f.results, f.err
}

type fakeSettings struct {
	cfg settings.Settings
	err error
}

func (f *fakeSettings) Load(_ context.Context) (settings.Settings, error) {
	return f.cfg, f.err
}

func chunkResult(source, content string, similarity float64) knowledge.SearchResult {
	return knowledge.SearchResult{
		Chunk: knowledge.Chunk{
			Content:    content,
			Metadata:   map[string]any{"source": source},
			Similarity: similarity,
		},
		Score:      similarity,
		SearchPath: "hybrid",
	}
}

func TestRAGSearchToolBuildsContextAndSources(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		chunkResult("onboarding.md", "입사 첫 주에는 장비를 수령합니다.", 0.82),
		chunkResult("welfare.md", "연차는 입사일 기준으로 부여됩니다.", 0.61),
	}}
	tool := NewRAGSearchTool(searcher, &fakeSettings{cfg: settings.Defaults()}, testLogger())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"연차"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if searcher.k != settings.Defaults().RetrievalK {
		t.Fatalf("retrieval k should come from settings, got %d", searcher.k)
	}
	if !strings.Contains(res.Content, "[출처: onboarding.md]") || !strings.Contains(res.Content, "[출처: welfare.md]") {
		t.Fatalf("context missing source tags: %q", res.Content)
	}
	if !strings.Contains(res.Content, "\n\n---\n\n") {
		t.Fatalf("chunks must be separated: %q", res.Content)
	}
	if res.Metadata["similarity"] != 0.82 {
		t.Fatalf("expected best similarity 0.82, got %v", res.Metadata["similarity"])
	}
	sources, ok := res.Metadata["sources"].([]agent.Source)
	if !ok || len(sources) != 2 {
		t.Fatalf("expected two sources, got %v", res.Metadata["sources"])
	}
	if sources[0].Source != "onboarding.md" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
}

func TestRAGSearchToolSourcesGatedBySetting(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		chunkResult("doc.md", "내용", 0.9),
	}}
	cfg := settings.Defaults()
	cfg.ShowSources = false
	tool := NewRAGSearchTool(searcher, &fakeSettings{cfg: cfg}, testLogger())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"질문"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, present := res.Metadata["sources"]; present {
		t.Fatalf("sources must be omitted when show_sources is false")
	}
}

func TestRAGSearchToolBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		chunkResult("doc.md", "관련 없는 내용", 0.2),
	}}
	tool := NewRAGSearchTool(searcher, &fakeSettings{cfg: settings.Defaults()}, testLogger())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"질문"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Content != "관련 문서를 찾았지만 유사도가 낮습니다 (최고 0.20). 웹 검색을 시도해 주세요." {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if below, _ := res.Metadata["below_threshold"].(bool); !below {
		t.Fatalf("expected below_threshold metadata")
	}
}

func TestRAGSearchToolNoResults(t *testing.T) {
	tool := NewRAGSearchTool(&fakeSearcher{}, &fakeSettings{cfg: settings.Defaults()}, testLogger())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"질문"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Content != "관련 문서를 찾을 수 없습니다." {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if res.Metadata["doc_count"] != 0 {
		t.Fatalf("unexpected metadata: %v", res.Metadata)
	}
}

func TestRAGSearchToolSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("db down")}
	tool := NewRAGSearchTool(searcher, &fakeSettings{cfg: settings.Defaults()}, testLogger())

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"질문"}`))
	if err != nil {
		t.Fatalf("search failures must not abort the agent loop: %v", err)
	}
	if res.Content != "문서 검색 중 오류가 발생했습니다." {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestBuildSourcesTruncatesContent(t *testing.T) {
	long := strings.Repeat("가", 300)
	sources := BuildSources([]knowledge.SearchResult{chunkResult("doc.md", long, 0.9)})
	if len(sources) != 1 {
		t.Fatalf("expected one source, got %d", len(sources))
	}
	if got := len([]rune(sources[0].Content)); got != 200 {
		t.Fatalf("expected 200-rune excerpt, got %d", got)
	}
	if sources[0].Source != "doc.md" {
		t.Fatalf("unexpected source: %q", sources[0].Source)
	}
}

func TestFormatDocsUnknownSource(t *testing.T) {
	result := knowledge.SearchResult{Chunk: knowledge.Chunk{Content: "내용"}}
	formatted := FormatDocs([]knowledge.SearchResult{result})
	if !strings.Contains(formatted, "[출처: 알 수 없음]") {
		t.Fatalf("missing unknown-source tag: %q", formatted)
	}
}
