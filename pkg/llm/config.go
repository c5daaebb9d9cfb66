package llm

import (
	"fmt"
	"strings"
)

type Config struct {
	Provider    string
	Model       string
	APIKey      string
	APIURL      string
	Temperature float64
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// DetectProvider infers the provider identifier from a model name. Unknown
// families default to openai, matching the widest-deployed wire format.
func DetectProvider(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"):
		return "openai"
	case strings.Contains(lower, "llama"),
		strings.Contains(lower, "mistral"),
		strings.Contains(lower, "qwen"),
		strings.Contains(lower, "exaone"):
		return "ollama"
	default:
		return "openai"
	}
}
