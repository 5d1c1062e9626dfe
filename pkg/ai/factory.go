package ai

import (
	"fmt"
	"time"

	"github.com/vynious/finOS/pkg/gemini"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"

	// CallTimeout bounds a single model call
	CallTimeout time.Duration
}

// NewReceiptExtractor creates a ReceiptExtractor based on the config.
// "auto" uses Ollama and, when a Gemini key is present, falls back to Gemini
// on connection errors.
func NewReceiptExtractor(cfg Config, logger *zap.Logger) (ReceiptExtractor, error) {
	ollama := func() *OllamaService {
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.CallTimeout, logger)
	}

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey), cfg.CallTimeout), nil

	case ProviderOllama, "":
		return ollama(), nil

	case ProviderAuto:
		if cfg.GeminiAPIKey == "" {
			return ollama(), nil
		}
		return NewFallbackService(ollama(), NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey), cfg.CallTimeout), logger), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
