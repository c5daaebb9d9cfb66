package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/llm"
)

const classifierSystem = `당신은 질문을 분류하는 시스템입니다.
사용자의 질문을 분석하여 "db" 또는 "rag" 중 하나로 분류하세요.
이전 대화 맥락이 있으면 참고하세요.

"db" — 아래 테이블에서 조회할 수 있는 질문:
  - profiles 테이블: 직원 이름(username), 부서(department), 직급(position), 분야(field)
    부서: AI, 경영, 기획, 서비스개발, 연구소
    직급: CEO, CTO, 대리, 부소장, 사원, 소장, 연구원, 이사, 팀장
    예: "팀장 누구야?", "몇 명이야?", "서비스개발팀 누구 있어?", "대표(=CEO) 누구야?", "전병훈이 뭐하는 사람이야?", "AI팀에 사원 누구?"
    ※ "대표"→"CEO", "개발팀"→"서비스개발" 등 사용자 표현을 DB 값으로 변환하세요
  - cafeteria_menus 테이블: 식당 메뉴, 점심, 식단표
    예: "오늘 점심 뭐야?", "내일 메뉴는?"

"rag" — 회사 내부 문서에서 찾을 수 있는 질문 (회사 소개, 복리후생, 업무 프로세스, 입사 가이드 등)

"web" — DB에도 없고 회사 문서에도 없을 것 같은 질문 (일반 상식, 시사, 날씨, 외부 정보 등)

중요: 특정 사람 이름이 언급되면 무조건 "db"로 분류하세요.

JSON 형식으로만 응답:
{"intent": "db 또는 rag 또는 web", "table": "profiles 또는 cafeteria_menus(db일 때)", "filters": {"position": "값", "department": "값", "username": "값", "day": "월/화/수/목/금/내일/모레"}}
filters에는 질문에서 추출한 조건만 넣으세요. 사용자 표현을 DB 값으로 변환해서 넣으세요. 없으면 빈 객체 {}.`

// classification is what the zero-temperature model call must return.
// Filter values arrive pre-normalized to canonical DB values; the router
// forwards them untouched.
type classification struct {
	Intent  string            `json:"intent"`
	Table   string            `json:"table"`
	Filters map[string]string `json:"filters"`
}

func buildClassifierMessages(question string, history []agent.Turn) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: classifierSystem}}
	start := 0
	if len(history) > 4 {
		start = len(history) - 4
	}
	for _, h := range history[start:] {
		role := "assistant"
		if h.Role == "user" {
			role = "user"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: question})
}

// classify runs the intent classifier. Any provider error or unparseable
// response degrades to intent "rag", the safest general-purpose default.
func (r *Router) classify(ctx context.Context, question string, history []agent.Turn) classification {
	provider, err := r.classifierProvider(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("의도 분류 실패, RAG로 폴백")
		classifierFallbacksTotal.Inc()
		return classification{Intent: "rag"}
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, buildClassifierMessages(question, history), nil)
	classifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.WithError(err).Warn("의도 분류 실패, RAG로 폴백")
		classifierFallbacksTotal.Inc()
		return classification{Intent: "rag"}
	}

	var c classification
	if err := json.Unmarshal([]byte(resp.Content), &c); err != nil {
		r.logger.WithError(err).Warn("의도 분류 실패, RAG로 폴백")
		classifierFallbacksTotal.Inc()
		return classification{Intent: "rag"}
	}
	if c.Intent == "" {
		c.Intent = "rag"
	}
	if c.Filters == nil {
		c.Filters = map[string]string{}
	}
	r.logger.WithField("question", question).WithField("intent", c.Intent).Info("질문 분류")
	return c
}
