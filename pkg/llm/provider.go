package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Provider is the uniform contract over a chat-completion backend.
//
// Chat is a single tool-call-aware round trip. ChatStream is reserved for the
// final, tool-free answer: it never receives a tool catalog and yields the
// response as incremental text fragments terminated by io.EOF.
type Provider interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (Response, error)
	ChatStream(ctx context.Context, messages []Message) (Stream, error)
}

// Stream yields text fragments until io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Message is one entry of the conversation transcript. Ordering is
// significant: the transcript is append-only and replayed to the provider on
// every round.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"-"`
}

// Tool describes a capability the model may invoke. Parameters follows the
// JSON-Schema object shape ({"type":"object","properties":{...}}) and is
// passed through to the provider's function-calling surface unmodified.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a tool invocation requested by the model. Arguments is always
// a valid JSON object; payloads that fail to parse degrade to "{}".
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response is a single Chat round-trip result. When ToolCalls is non-empty
// the caller treats it as authoritative for the next step; Content may still
// carry commentary.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// NormalizeArguments returns args as-is when it parses as a JSON object and
// "{}" otherwise. Providers run every tool-call payload through this before
// handing it to callers.
func NormalizeArguments(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	var probe map[string]any
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(trimmed)
}

type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
	decode func([]byte) (string, error)
}

func newSSEStream(resp *http.Response, decode func([]byte) (string, error)) Stream {
	return &sseStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
		decode: decode,
	}
}

func (s *sseStream) Close() error {
	return s.resp.Body.Close()
}

func (s *sseStream) Recv() (string, error) {
	for {
		data, err := s.readEvent()
		if err != nil {
			return "", err
		}
		payload := strings.TrimSpace(string(data))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return "", io.EOF
		}
		fragment, err := s.decode(data)
		if err != nil {
			return "", err
		}
		if fragment == "" {
			continue
		}
		return fragment, nil
	}
}

func (s *sseStream) readEvent() ([]byte, error) {
	var dataLines []string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		if errors.Is(err, io.EOF) {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			return nil, io.EOF
		}
	}
}
