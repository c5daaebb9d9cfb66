package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
)

// maxToolRounds caps the tool-calling loop so a model that keeps asking for
// tools cannot spin forever.
const maxToolRounds = 5

const budgetExceededMsg = "도구 호출 최대 라운드 초과"

// Turn is one prior exchange in a conversation. Roles other than "user" are
// treated as assistant turns.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the outcome of a synchronous agent run.
type Result struct {
	Answer    string   `json:"answer"`
	Route     string   `json:"route"`
	ToolCalls []string `json:"tool_calls"`
}

// Agent drives a tool-calling loop against an LLM provider:
// question goes in, the model may request tools, tool results are fed back,
// and the loop ends when the model answers in plain text.
type Agent struct {
	provider     llm.Provider
	tools        *Registry
	systemPrompt string
	logger       logging.Logger
}

func New(provider llm.Provider, tools *Registry, systemPrompt string, logger logging.Logger) *Agent {
	return &Agent{
		provider:     provider,
		tools:        tools,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Run answers a question in one synchronous call, executing up to
// maxToolRounds rounds of tool calls. Route is the name of the last executed
// tool, "llm" when the model answered without tools, or "error" when the
// round budget ran out.
func (a *Agent) Run(ctx context.Context, question string, history []Turn) (Result, error) {
	messages := a.buildMessages(question, history)
	specs := a.tools.Specs()
	var executed []string

	for round := 0; round < maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		resp, err := a.chat(ctx, messages, specs)
		if err != nil {
			return Result{}, err
		}

		if !resp.HasToolCalls() {
			route := lastRoute(executed)
			runsTotal.WithLabelValues(route, "sync").Inc()
			return Result{
				Answer:    resp.Content,
				Route:     route,
				ToolCalls: toolCallList(executed),
			}, nil
		}

		messages = a.executeRound(ctx, resp, &executed, messages)
	}

	a.logger.Warn(budgetExceededMsg)
	runsTotal.WithLabelValues("error", "sync").Inc()
	return Result{
		Answer:    "죄송합니다, 처리 중 문제가 발생했습니다.",
		Route:     "error",
		ToolCalls: toolCallList(executed),
	}, nil
}

// RunStream answers a question as a sequence of StreamEvents delivered
// through emit. Tool rounds run to completion first; the final answer is then
// streamed token by token. When the model answers immediately without any
// tool call, the already-received text is re-emitted as a single token
// instead of paying for a second provider call. An exhausted round budget
// emits a single error event and nothing after it. A non-nil error from emit
// aborts the run, which covers consumer disconnects.
func (a *Agent) RunStream(ctx context.Context, question string, history []Turn, emit func(StreamEvent) error) error {
	messages := a.buildMessages(question, history)
	specs := a.tools.Specs()
	var executed []string
	needFinalStream := true
	reusedText := ""
	exhausted := true

	for round := 0; round < maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := a.chat(ctx, messages, specs)
		if err != nil {
			return err
		}

		if !resp.HasToolCalls() {
			if len(executed) == 0 && resp.Content != "" {
				needFinalStream = false
				reusedText = resp.Content
			}
			exhausted = false
			break
		}

		messages = a.executeRound(ctx, resp, &executed, messages)
	}

	if exhausted {
		a.logger.Warn(budgetExceededMsg)
		runsTotal.WithLabelValues("error", "stream").Inc()
		return emit(StreamEvent{Type: EventError, Data: budgetExceededMsg})
	}

	route := lastRoute(executed)
	runsTotal.WithLabelValues(route, "stream").Inc()
	if err := emit(StreamEvent{Type: EventRouteInfo, Data: route}); err != nil {
		return err
	}

	if needFinalStream {
		stream, err := a.provider.ChatStream(ctx, messages)
		if err != nil {
			return err
		}
		defer stream.Close()
		for {
			token, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if token == "" {
				continue
			}
			if err := emit(StreamEvent{Type: EventToken, Data: token}); err != nil {
				return err
			}
		}
	} else {
		if err := emit(StreamEvent{Type: EventToken, Data: reusedText}); err != nil {
			return err
		}
	}

	return emit(StreamEvent{Type: EventDone})
}

func (a *Agent) buildMessages(question string, history []Turn) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: a.systemPrompt}}
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
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return msgs
}

func (a *Agent) chat(ctx context.Context, messages []llm.Message, specs []llm.Tool) (llm.Response, error) {
	start := time.Now()
	resp, err := a.provider.Chat(ctx, messages, specs)
	llmDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		return llm.Response{}, err
	}
	llmCallsTotal.WithLabelValues("success").Inc()
	return resp, nil
}

// executeRound runs every tool call the model returned, in the order the
// model listed them, appending one tool message per result and then the
// assistant commentary. That ordering is part of the model-facing contract.
func (a *Agent) executeRound(ctx context.Context, resp llm.Response, executed *[]string, messages []llm.Message) []llm.Message {
	for _, tc := range resp.ToolCalls {
		result := a.executeTool(ctx, tc)
		*executed = append(*executed, tc.Name)
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    result,
			Name:       tc.Name,
			ToolCallID: tc.ID,
		})
	}
	return append(messages, llm.Message{Role: "assistant", Content: resp.Content})
}

// executeTool resolves and runs a single tool call. Failures never abort the
// loop: an unknown tool or a tool error becomes an error string the model
// can read and recover from on the next round.
func (a *Agent) executeTool(ctx context.Context, tc llm.ToolCall) string {
	tool, ok := a.tools.Get(tc.Name)
	if !ok {
		a.logger.WithField("tool", tc.Name).Warn("알 수 없는 도구")
		toolExecutionsTotal.WithLabelValues(tc.Name, "unknown").Inc()
		return fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
	}

	args := llm.NormalizeArguments(string(tc.Arguments))
	a.logger.WithField("tool", tc.Name).WithField("arguments", string(args)).Info("도구 실행")

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	toolDuration.WithLabelValues(tc.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		a.logger.WithField("tool", tc.Name).WithError(err).Error("도구 실행 실패")
		toolExecutionsTotal.WithLabelValues(tc.Name, "error").Inc()
		return fmt.Sprintf("Error executing %s: %v", tc.Name, err)
	}

	toolExecutionsTotal.WithLabelValues(tc.Name, "success").Inc()
	a.logger.WithField("tool", tc.Name).WithField("result", truncate(result.Content, 100)).Info("도구 결과")
	return result.Content
}

func lastRoute(executed []string) string {
	if len(executed) == 0 {
		return "llm"
	}
	return executed[len(executed)-1]
}

// toolCallList keeps the JSON shape an empty list rather than null.
func toolCallList(executed []string) []string {
	if executed == nil {
		return []string{}
	}
	return executed
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
