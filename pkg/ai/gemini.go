package ai

import (
	"context"
	"time"

	"github.com/vynious/finOS/pkg/gemini"
	"github.com/vynious/finOS/pkg/metrics"
)

// GeminiExtractor implements ReceiptExtractor on top of the Gemini REST API
type GeminiExtractor struct {
	client      *gemini.GeminiService
	callTimeout time.Duration
}

func NewGeminiExtractor(client *gemini.GeminiService, callTimeout time.Duration) *GeminiExtractor {
	return &GeminiExtractor{client: client, callTimeout: callTimeout}
}

func (g *GeminiExtractor) ExtractReceipts(ctx context.Context, issuer, text string) ([]Transaction, error) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.client.GenerateJSON(ctx, BuildPrompt(issuer, text))
	var txs []Transaction
	if err == nil {
		txs, err = ParseTransactions(out)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordModelCallLatency(string(ProviderGemini), status, time.Since(start))
	return txs, err
}
