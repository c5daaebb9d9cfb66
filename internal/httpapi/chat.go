package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/middleware"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ChatResponse struct {
	Answer         string         `json:"answer"`
	Route          string         `json:"route"`
	Intent         string         `json:"intent,omitempty"`
	Image          string         `json:"image,omitempty"`
	Sources        []agent.Source `json:"sources,omitempty"`
	ToolCalls      []string       `json:"tool_calls,omitempty"`
	ConversationID string         `json:"conversation_id"`
}

// parseChatRequest validates the request and resolves the conversation id,
// minting one for a fresh conversation.
func (h *Handler) parseChatRequest(c *gin.Context) (ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "메시지를 입력해 주세요."})
		return ChatRequest{}, false
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}
	c.Set("conversation_id", req.ConversationID)
	return req, true
}

// loadHistory is best-effort: a failing history read degrades to an empty
// window rather than failing the request.
func (h *Handler) loadHistory(c *gin.Context, conversationID string) []agent.Turn {
	history, err := h.History.Recent(c.Request.Context(), conversationID, historyLimit)
	if err != nil {
		h.Logger.WithError(err).Warn("대화 히스토리 조회 실패")
		return nil
	}
	return history
}

func (h *Handler) saveMessage(c *gin.Context, conversationID, role, content string) {
	if content == "" {
		return
	}
	if err := h.History.Append(c.Request.Context(), conversationID, role, content); err != nil {
		h.Logger.WithError(err).Warn("메시지 저장 실패")
	}
}

// HandleChat answers synchronously. ?mode=router selects the
// classify-and-dispatch pipeline; the default runs the tool-calling agent.
func (h *Handler) HandleChat(c *gin.Context) {
	req, ok := h.parseChatRequest(c)
	if !ok {
		return
	}

	history := h.loadHistory(c, req.ConversationID)
	h.saveMessage(c, req.ConversationID, "user", req.Message)

	var resp ChatResponse
	if c.Query("mode") == "router" {
		routed, err := h.Pipeline.ClassifyAndRoute(c.Request.Context(), req.Message, history)
		if err != nil {
			middleware.GetContextLogger(c, h.Logger).WithError(err).Error("질문 처리 실패")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "질문 처리 중 오류가 발생했습니다."})
			return
		}
		resp = ChatResponse{
			Answer:  routed.Answer,
			Route:   routed.Route,
			Intent:  routed.Intent,
			Image:   routed.Image,
			Sources: routed.Sources,
		}
	} else {
		ag, err := h.Agent.Get(c.Request.Context())
		if err != nil {
			h.Logger.WithError(err).Error("에이전트 초기화 실패")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "질문 처리 중 오류가 발생했습니다."})
			return
		}
		result, err := ag.Run(c.Request.Context(), req.Message, history)
		if err != nil {
			middleware.GetContextLogger(c, h.Logger).WithError(err).Error("질문 처리 실패")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "질문 처리 중 오류가 발생했습니다."})
			return
		}
		resp = ChatResponse{
			Answer:    result.Answer,
			Route:     result.Route,
			ToolCalls: result.ToolCalls,
		}
	}

	resp.ConversationID = req.ConversationID
	h.saveMessage(c, req.ConversationID, "assistant", resp.Answer)
	c.JSON(http.StatusOK, resp)
}

// HandleChatStream answers over SSE. The final frame is always the
// data: [DONE] sentinel; an error event is never followed by a done event.
func (h *Handler) HandleChatStream(c *gin.Context) {
	req, ok := h.parseChatRequest(c)
	if !ok {
		return
	}

	history := h.loadHistory(c, req.ConversationID)
	h.saveMessage(c, req.ConversationID, "user", req.Message)

	sse, err := newSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "streaming unavailable"})
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Conversation-ID", req.ConversationID)
	c.Status(http.StatusOK)

	var answerParts []string
	emit := func(ev agent.StreamEvent) error {
		switch ev.Type {
		case agent.EventToken:
			answerParts = append(answerParts, ev.Data)
		case agent.EventTagResult:
			if answer, ok := ev.Result["answer"].(string); ok {
				answerParts = append(answerParts, answer)
			}
		}
		return sse.WriteEvent(ev)
	}

	if c.Query("mode") == "router" {
		err = h.Pipeline.ClassifyAndRouteStream(c.Request.Context(), req.Message, history, emit)
	} else {
		var ag *agent.Agent
		ag, err = h.Agent.Get(c.Request.Context())
		if err == nil {
			err = ag.RunStream(c.Request.Context(), req.Message, history, emit)
		}
	}
	if err != nil {
		middleware.GetContextLogger(c, h.Logger).WithError(err).Error("스트리밍 처리 실패")
		_ = sse.WriteEvent(agent.StreamEvent{Type: agent.EventError, Data: "처리 중 오류가 발생했습니다."})
	}
	_ = sse.WriteSentinel()

	h.saveMessage(c, req.ConversationID, "assistant", strings.Join(answerParts, ""))
}

// HandleClearHistory wipes one conversation's stored messages.
func (h *Handler) HandleClearHistory(c *gin.Context) {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "conversation_id가 필요합니다."})
		return
	}
	if err := h.History.Clear(c.Request.Context(), conversationID); err != nil {
		h.Logger.WithError(err).Error("히스토리 삭제 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "히스토리 삭제에 실패했습니다."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "대화 히스토리가 초기화되었습니다."})
}
