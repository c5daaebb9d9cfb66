package llm

import (
	"context"
	"strings"
)

// OllamaProvider speaks Ollama's OpenAI-compatible endpoint.
type OllamaProvider struct {
	openai *OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = "http://localhost:11434/v1"
	}
	return &OllamaProvider{
		openai: NewOpenAIProvider(cfgCopy),
	}
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	return p.openai.Chat(ctx, messages, tools)
}

func (p *OllamaProvider) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	return p.openai.ChatStream(ctx, messages)
}
