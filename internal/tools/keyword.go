package tools

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/llm"
)

// WifiPattern matches the questions the wifi canned answer covers. The router
// uses the same pattern for its precheck, so a question short-circuited there
// and a question the model routes here get the identical answer.
var WifiPattern = regexp.MustCompile(`(?i)와이파이|wifi|wi-fi|와이파이\s*비번|와이파이\s*비밀번호`)

type cannedAnswer struct {
	Answer string `json:"answer"`
	Image  string `json:"image"`
}

// KeywordTool answers extremely common fixed-answer questions by pattern
// match, without any model call.
type KeywordTool struct {
	patterns []patternResponse
}

type patternResponse struct {
	pattern  *regexp.Regexp
	response cannedAnswer
}

// NewKeywordTool builds the tool with the wifi QR answer pointing at
// imagePath.
func NewKeywordTool(imagePath string) *KeywordTool {
	return &KeywordTool{
		patterns: []patternResponse{
			{
				pattern: WifiPattern,
				response: cannedAnswer{
					Answer: "와이파이 QR코드입니다! 카메라로 스캔해주세요 📱",
					Image:  imagePath,
				},
			},
		},
	}
}

func (t *KeywordTool) Spec() llm.Tool {
	return llm.Tool{
		Name: "keyword_lookup",
		Description: "자주 묻는 간단한 질문(와이파이 비밀번호, QR코드 등)에 즉시 답변합니다. " +
			"사용자가 와이파이, WiFi, 비밀번호 등을 물어볼 때 사용하세요.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "사용자의 원래 질문",
				},
			},
			"required": []string{"question"},
		},
	}
}

func (t *KeywordTool) Execute(_ context.Context, args json.RawMessage) (agent.ToolResult, error) {
	var params struct {
		Question string `json:"question"`
	}
	_ = json.Unmarshal(args, &params)

	for _, pr := range t.patterns {
		if pr.pattern.MatchString(params.Question) {
			payload, err := json.Marshal(pr.response)
			if err != nil {
				return agent.ToolResult{}, err
			}
			return agent.ToolResult{
				Content:  string(payload),
				Metadata: map[string]any{"matched": true},
			}, nil
		}
	}
	return agent.ToolResult{
		Content:  "해당하는 키워드 응답이 없습니다.",
		Metadata: map[string]any{"matched": false},
	}, nil
}

// Precheck returns the canned answer for a question, bypassing the tool
// protocol entirely. Used by the router before any classification.
func (t *KeywordTool) Precheck(question string) (answer, image string, ok bool) {
	for _, pr := range t.patterns {
		if pr.pattern.MatchString(question) {
			return pr.response.Answer, pr.response.Image, true
		}
	}
	return "", "", false
}
