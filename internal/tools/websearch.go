package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
	"github.com/cginside/hobi/pkg/search"
)

const webSearchMaxResults = 5

// WebSearchTool answers from the open web when internal sources come up
// empty.
type WebSearchTool struct {
	provider search.Provider
	logger   logging.Logger
}

func NewWebSearchTool(provider search.Provider, logger logging.Logger) *WebSearchTool {
	return &WebSearchTool{provider: provider, logger: logger}
}

func (t *WebSearchTool) Spec() llm.Tool {
	return llm.Tool{
		Name: "web_search",
		Description: "웹에서 정보를 검색합니다. " +
			"회사 내부 문서에 없는 일반 지식, 최신 뉴스, 외부 정보가 필요할 때 사용하세요.",
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

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (agent.ToolResult, error) {
	var params struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(args, &params)

	if t.provider == nil {
		return agent.ToolResult{Content: "웹 검색에 실패했습니다."}, nil
	}
	results, err := t.provider.Search(ctx, params.Query, search.Options{MaxResults: webSearchMaxResults})
	if err != nil {
		t.logger.WithError(err).Warn("웹 검색 실패")
		return agent.ToolResult{Content: "웹 검색에 실패했습니다."}, nil
	}

	if len(results) == 0 {
		return agent.ToolResult{Content: "검색 결과가 없습니다."}, nil
	}

	return agent.ToolResult{
		Content:  FormatSearchResults(results),
		Metadata: map[string]any{"result_count": len(results)},
	}, nil
}

// FormatSearchResults renders web hits as a numbered plain-text list for the
// model to summarize.
func FormatSearchResults(results []search.Result) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[%d] %s\n%s", i+1, r.Title, r.Snippet))
	}
	return strings.Join(parts, "\n\n")
}
