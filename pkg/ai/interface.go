package ai

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transaction is a single purchase the model found in a message.
type Transaction struct {
	Merchant string          `json:"merchant"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ReceiptExtractor is the interface for the text-to-transactions model call.
// Implement this interface to add new AI providers.
type ReceiptExtractor interface {
	ExtractReceipts(ctx context.Context, issuer, text string) ([]Transaction, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
