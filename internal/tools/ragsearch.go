package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
)

// similarityThreshold is the minimum best-chunk similarity for a retrieval
// answer. Anything weaker gets an explicit "try web search" response instead
// of an answer built on irrelevant context.
const similarityThreshold = 0.35

// sourceContentLimit bounds the chunk excerpt carried in source listings.
const sourceContentLimit = 200

// KnowledgeSearcher serves similarity queries over the document index.
type KnowledgeSearcher interface {
	SearchSimilar(ctx context.Context, query string, k int) ([]knowledge.SearchResult, error)
}

// SettingsSource reads the current runtime settings.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// RAGSearchTool searches the internal document index for the agent.
type RAGSearchTool struct {
	searcher KnowledgeSearcher
	settings SettingsSource
	logger   logging.Logger
}

func NewRAGSearchTool(searcher KnowledgeSearcher, settingsSource SettingsSource, logger logging.Logger) *RAGSearchTool {
	return &RAGSearchTool{searcher: searcher, settings: settingsSource, logger: logger}
}

func (t *RAGSearchTool) Spec() llm.Tool {
	return llm.Tool{
		Name: "rag_search",
		Description: "CG Inside 회사 내부 문서(사내 규정, 온보딩 가이드, 복지 정보 등)를 검색합니다. " +
			"회사 정책, 규정, 제도, 복지, 근무, 휴가 등에 대한 질문에 사용하세요.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "검색할 질문 또는 키워드",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *RAGSearchTool) Execute(ctx context.Context, args json.RawMessage) (agent.ToolResult, error) {
	var params struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(args, &params)

	cfg, err := t.settings.Load(ctx)
	if err != nil {
		t.logger.WithError(err).Error("설정 로드 실패")
		return agent.ToolResult{Content: "문서 검색 중 오류가 발생했습니다."}, nil
	}

	results, err := t.searcher.SearchSimilar(ctx, params.Query, cfg.RetrievalK)
	if err != nil {
		t.logger.WithError(err).Error("RAG 검색 실패")
		return agent.ToolResult{Content: "문서 검색 중 오류가 발생했습니다."}, nil
	}

	if len(results) == 0 {
		return agent.ToolResult{
			Content:  "관련 문서를 찾을 수 없습니다.",
			Metadata: map[string]any{"similarity": 0.0, "doc_count": 0},
		}, nil
	}

	best := 0.0
	for _, r := range results {
		if r.Similarity > best {
			best = r.Similarity
		}
	}

	if best < similarityThreshold {
		return agent.ToolResult{
			Content: fmt.Sprintf("관련 문서를 찾았지만 유사도가 낮습니다 (최고 %.2f). 웹 검색을 시도해 주세요.", best),
			Metadata: map[string]any{
				"similarity":      best,
				"doc_count":       len(results),
				"below_threshold": true,
			},
		}, nil
	}

	metadata := map[string]any{
		"similarity": best,
		"doc_count":  len(results),
	}
	if cfg.ShowSources {
		metadata["sources"] = BuildSources(results)
	}

	return agent.ToolResult{
		Content:  FormatDocs(results),
		Metadata: metadata,
	}, nil
}

// FormatDocs concatenates retrieved chunks into the context block handed to
// the model, each chunk prefixed with its source tag.
func FormatDocs(results []knowledge.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[출처: %s]\n%s", chunkSource(r), r.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildSources lists the provenance of retrieved chunks with truncated
// excerpts.
func BuildSources(results []knowledge.SearchResult) []agent.Source {
	sources := make([]agent.Source, 0, len(results))
	for _, r := range results {
		source := ""
		if s, ok := r.Metadata["source"].(string); ok {
			source = s
		}
		sources = append(sources, agent.Source{
			Source:  source,
			Content: truncateRunes(r.Content, sourceContentLimit),
		})
	}
	return sources
}

func chunkSource(r knowledge.SearchResult) string {
	if s, ok := r.Metadata["source"].(string); ok && s != "" {
		return s
	}
	return "알 수 없음"
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
