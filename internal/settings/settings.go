package settings

import (
	"encoding/json"
	"fmt"
)

// Settings holds the runtime-tunable configuration for the assistant
// pipeline. Every pipeline invocation reads a fresh copy from the store, so
// an operator change takes effect on the next request.
type Settings struct {
	SystemPrompt    string  `json:"system_prompt"`
	ChunkSize       int     `json:"chunk_size"`
	ChunkOverlap    int     `json:"chunk_overlap"`
	EmbeddingModel  string  `json:"embedding_model"`
	ChatModel       string  `json:"chat_model"`
	ChatTemperature float64 `json:"chat_temperature"`
	RetrievalK      int     `json:"retrieval_k"`
	ShowSources     bool    `json:"show_sources"`
}

// Defaults returns the built-in settings used when the store has no
// override for a key.
func Defaults() Settings {
	return Settings{
		SystemPrompt:    "당신은 CG Inside 회사의 온보딩 도우미 NPC '호비'입니다.\n신입사원의 질문에 친절하고 정확하게 답변합니다.",
		ChunkSize:       500,
		ChunkOverlap:    50,
		EmbeddingModel:  "text-embedding-3-small",
		ChatModel:       "gpt-4o-mini",
		ChatTemperature: 0.3,
		RetrievalK:      3,
		ShowSources:     true,
	}
}

// Keys lists the recognized settings keys in a stable order.
func Keys() []string {
	return []string{
		"system_prompt",
		"chunk_size",
		"chunk_overlap",
		"embedding_model",
		"chat_model",
		"chat_temperature",
		"retrieval_k",
		"show_sources",
	}
}

var recognizedKeys = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, k := range Keys() {
		m[k] = struct{}{}
	}
	return m
}()

// merge overlays stored key/value pairs onto base and decodes the result.
// Values arrive as raw JSON so booleans and numbers keep their types.
func merge(base Settings, overrides map[string]json.RawMessage) (Settings, error) {
	encoded, err := json.Marshal(base)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	for key, value := range overrides {
		if _, ok := recognizedKeys[key]; !ok {
			continue
		}
		asMap[key] = value
	}
	remerged, err := json.Marshal(asMap)
	if err != nil {
		return Settings{}, fmt.Errorf("encode merged settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(remerged, &out); err != nil {
		return Settings{}, fmt.Errorf("decode merged settings: %w", err)
	}
	return out, nil
}
