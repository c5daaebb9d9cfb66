package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProviderChat(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("expected auth header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Fatalf("expected stream false")
		}
		if len(req.Tools) != 1 {
			t.Fatalf("expected tools in request")
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"q\":\"x\"}"}}]}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "gpt-test",
	})

	resp, err := provider.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, []Tool{
		{
			Name:        "search",
			Description: "searches",
			Parameters: map[string]any{
				"type": "object",
			},
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatalf("expected tool call")
	}
	if resp.ToolCalls[0].Name != "search" {
		t.Fatalf("unexpected tool name %q", resp.ToolCalls[0].Name)
	}
	if string(resp.ToolCalls[0].Arguments) != `{"q":"x"}` {
		t.Fatalf("unexpected arguments %s", resp.ToolCalls[0].Arguments)
	}
}

func TestOpenAIProviderChatMalformedArguments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search","arguments":"not json"}}]}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, Model: "gpt-test"})
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if string(resp.ToolCalls[0].Arguments) != "{}" {
		t.Fatalf("expected degraded arguments, got %s", resp.ToolCalls[0].Arguments)
	}
}

func TestOpenAIProviderChatStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Fatalf("expected stream true")
		}
		if len(req.Tools) != 0 {
			t.Fatalf("stream requests must not carry tools")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"안녕\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"하세요\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, Model: "gpt-test"})
	stream, err := provider.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		content.WriteString(fragment)
	}
	if content.String() != "안녕하세요" {
		t.Fatalf("unexpected content %q", content.String())
	}
}

func TestOpenAIProviderChatUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, Model: "gpt-test"})
	if _, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestToOpenAIMessagesToolRole(t *testing.T) {
	t.Parallel()

	out := toOpenAIMessages([]Message{
		{Role: "tool", Content: "result", Name: "search", ToolCallID: "call_1"},
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{{ID: "call_2", Name: "lookup", Arguments: json.RawMessage(`{"a":1}`)}}},
	})
	if out[0].ToolCallID != "call_1" || out[0].Name != "search" {
		t.Fatalf("tool message lost identity: %+v", out[0])
	}
	if len(out[1].ToolCalls) != 1 || out[1].ToolCalls[0].Function.Name != "lookup" {
		t.Fatalf("assistant tool calls not serialized: %+v", out[1])
	}
}
