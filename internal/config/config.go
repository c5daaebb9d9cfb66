package config

import (
	"github.com/cginside/hobi/pkg/config"
)

// Config stores environment configuration for Hobi.
type Config struct {
	Port              string
	DatabaseURL       string
	LLMProvider       string
	LLMAPIKey         string
	LLMAPIURL         string
	EmbeddingProvider string
	EmbeddingAPIKey   string
	EmbeddingAPIURL   string
	SearchProvider    string
	SearchAPIKey      string
	SearchAPIURL      string
	AdminAPIKey       string
	WifiQRImagePath   string
}

// LoadConfig loads the Hobi configuration from environment variables.
// Model names and tuning parameters live in the settings store, not here:
// operators change them at runtime without a restart.
func LoadConfig() Config {
	return Config{
		Port:              config.GetEnv("PORT", "8000"),
		DatabaseURL:       config.RequireEnv("DATABASE_URL"),
		LLMProvider:       config.GetEnv("LLM_PROVIDER", ""),
		LLMAPIKey:         config.GetEnv("LLM_API_KEY", config.GetEnv("OPENAI_API_KEY", "")),
		LLMAPIURL:         config.GetEnv("LLM_API_URL", ""),
		EmbeddingProvider: config.GetEnv("EMBEDDING_PROVIDER", config.GetEnv("LLM_PROVIDER", "")),
		EmbeddingAPIKey:   config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", config.GetEnv("OPENAI_API_KEY", ""))),
		EmbeddingAPIURL:   config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "")),
		SearchProvider:    config.GetEnv("SEARCH_PROVIDER", ""),
		SearchAPIKey:      config.GetEnv("SEARCH_API_KEY", ""),
		SearchAPIURL:      config.GetEnv("SEARCH_API_URL", ""),
		AdminAPIKey:       config.GetEnv("HOBI_ADMIN_API_KEY", ""),
		WifiQRImagePath:   config.GetEnv("HOBI_WIFI_QR_IMAGE", "/images/wifi-qr.png"),
	}
}
