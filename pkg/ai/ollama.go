package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vynious/finOS/pkg/metrics"

	"go.uber.org/zap"
)

// OllamaService implements ReceiptExtractor using a local Ollama server
type OllamaService struct {
	baseURL     string
	model       string
	callTimeout time.Duration
	client      *http.Client
	logger      *zap.Logger
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string, callTimeout time.Duration, logger *zap.Logger) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		callTimeout: callTimeout,
		client:      &http.Client{},
		logger:      logger.Named("ollama"),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ExtractReceipts implements ReceiptExtractor
func (o *OllamaService) ExtractReceipts(ctx context.Context, issuer, text string) ([]Transaction, error) {
	start := time.Now()
	txs, err := o.extract(ctx, issuer, text)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordModelCallLatency(string(ProviderOllama), status, time.Since(start))
	return txs, err
}

func (o *OllamaService) extract(ctx context.Context, issuer, text string) ([]Transaction, error) {
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: BuildPrompt(issuer, text),
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	txs, err := ParseTransactions(result.Response)
	if err != nil {
		o.logger.Debug("unparseable model output", zap.String("response", truncate(result.Response, 500)))
		return nil, err
	}
	return txs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
