package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
)

// DirectoryQuerier answers structured questions against the employee and
// cafeteria tables. Implemented by internal/directory.
type DirectoryQuerier interface {
	Query(ctx context.Context, table string, filters map[string]string) (string, error)
}

// DBQueryTool exposes the employee directory and cafeteria menu tables to the
// agent.
type DBQueryTool struct {
	directory DirectoryQuerier
	logger    logging.Logger
}

func NewDBQueryTool(directory DirectoryQuerier, logger logging.Logger) *DBQueryTool {
	return &DBQueryTool{directory: directory, logger: logger}
}

func (t *DBQueryTool) Spec() llm.Tool {
	return llm.Tool{
		Name: "db_query",
		Description: "CG Inside 직원 정보(이름, 부서, 직급) 또는 식단 메뉴를 데이터베이스에서 조회합니다. " +
			"직원 검색, 인원수 확인, 오늘/내일 점심 메뉴 등에 사용하세요.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table": map[string]any{
					"type":        "string",
					"enum":        []string{"profiles", "cafeteria_menus"},
					"description": "조회할 테이블. 직원 정보는 profiles, 식단은 cafeteria_menus",
				},
				"filters": map[string]any{
					"type":        "object",
					"description": "검색 조건. profiles: {position, department, username}. cafeteria_menus: {day: '월'~'금' 또는 '내일'/'모레'}",
					"properties": map[string]any{
						"position":   map[string]any{"type": "string", "description": "직급 (CEO, CTO, 팀장, 대리, 사원, 소장, 부소장, 연구원, 이사)"},
						"department": map[string]any{"type": "string", "description": "부서 (AI, 경영, 기획, 서비스개발, 연구소)"},
						"username":   map[string]any{"type": "string", "description": "직원 이름"},
						"day":        map[string]any{"type": "string", "description": "요일 (월/화/수/목/금/내일/모레)"},
					},
				},
			},
			"required": []string{"table"},
		},
	}
}

func (t *DBQueryTool) Execute(ctx context.Context, args json.RawMessage) (agent.ToolResult, error) {
	var params struct {
		Table   string            `json:"table"`
		Filters map[string]string `json:"filters"`
	}
	_ = json.Unmarshal(args, &params)
	if params.Filters == nil {
		params.Filters = map[string]string{}
	}

	answer, err := t.directory.Query(ctx, params.Table, params.Filters)
	if err != nil {
		t.logger.WithError(err).Error("DB 조회 실패")
		return agent.ToolResult{Content: fmt.Sprintf("DB 조회 중 오류가 발생했습니다: %v", err)}, nil
	}
	if answer == "" {
		answer = "조회 결과가 없습니다."
	}
	return agent.ToolResult{
		Content:  answer,
		Metadata: map[string]any{"table": params.Table, "filters": params.Filters},
	}, nil
}
